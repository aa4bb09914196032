package newchat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"atelier/models"
	"atelier/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrInvalidMessage = errors.New("invalid message")

type ContactStore interface {
	Insert(ctx context.Context, m *models.ContactMessage) error
	List(ctx context.Context, unreadOnly bool, skip, limit int64) ([]models.ContactMessage, error)
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type mongoContactStore struct {
	coll *mongo.Collection
}

func NewMongoContactStore(coll *mongo.Collection) ContactStore {
	return &mongoContactStore{coll: coll}
}

func (s *mongoContactStore) Insert(ctx context.Context, m *models.ContactMessage) error {
	_, err := s.coll.InsertOne(ctx, m)
	return err
}

func (s *mongoContactStore) List(ctx context.Context, unreadOnly bool, skip, limit int64) ([]models.ContactMessage, error) {
	filter := bson.M{}
	if unreadOnly {
		filter["read"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetSkip(skip).SetLimit(limit)
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	list := []models.ContactMessage{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *mongoContactStore) MarkRead(ctx context.Context, id string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoContactStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ValidateContact trims the message in place and checks it is worth storing.
func ValidateContact(m *models.ContactMessage) error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Phone = strings.TrimSpace(m.Phone)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Body = strings.TrimSpace(m.Body)

	if m.Name == "" || m.Body == "" {
		return fmt.Errorf("%w: name and message are required", ErrInvalidMessage)
	}
	if _, err := mail.ParseAddress(m.Email); err != nil {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidMessage)
	}
	if len(m.Name) > 100 || len(m.Subject) > 200 || len(m.Body) > 5000 {
		return fmt.Errorf("%w: message too long", ErrInvalidMessage)
	}
	return nil
}

type ContactHandler struct {
	store ContactStore
}

func NewContactHandler(store ContactStore) *ContactHandler {
	return &ContactHandler{store: store}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "message not found")
	default:
		log.Printf("contact: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var m models.ContactMessage
	if err := utils.DecodeJSON(r, &m); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := ValidateContact(&m); err != nil {
		writeError(w, err)
		return
	}
	m.ID = utils.GetUUID()
	m.Read = false
	m.CreatedAt = time.Now()
	if err := h.store.Insert(r.Context(), &m); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": m.ID})
}

// GET /api/admin/messages?unread=true
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	skip, limit := utils.ParsePagination(r, 50, 200)
	list, err := h.store.List(r.Context(), r.URL.Query().Get("unread") == "true", skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"messages": list})
}

func (h *ContactHandler) MarkRead(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.store.MarkRead(r.Context(), ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.store.Delete(r.Context(), ps.ByName("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
