package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"atelier/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// IdempotencyRecord is one stored Idempotency-Key and, once the handler
// finished, the response it produced.
type IdempotencyRecord struct {
	Key         string                 `bson:"key"`
	Method      string                 `bson:"method"`
	Path        string                 `bson:"path"`
	UserID      string                 `bson:"user_id"`
	RequestHash string                 `bson:"request_hash"`
	Response    map[string]interface{} `bson:"response,omitempty"`
	CreatedAt   time.Time              `bson:"created_at"`
	ExpiresAt   time.Time              `bson:"expires_at"`
}

// IdempotencyStore persists records; the Mongo collection needs a unique index on key.
type IdempotencyStore interface {
	Insert(ctx context.Context, rec IdempotencyRecord) (duplicate bool, err error)
	Find(ctx context.Context, key string) (*IdempotencyRecord, error)
	SaveResponse(ctx context.Context, key string, response map[string]interface{}) error
	Delete(ctx context.Context, key string) error
}

type mongoIdempotencyStore struct {
	coll *mongo.Collection
}

func NewMongoIdempotencyStore(coll *mongo.Collection) IdempotencyStore {
	return &mongoIdempotencyStore{coll: coll}
}

func (s *mongoIdempotencyStore) Insert(ctx context.Context, rec IdempotencyRecord) (bool, error) {
	_, err := s.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

func (s *mongoIdempotencyStore) Find(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	if err := s.coll.FindOne(ctx, bson.M{"key": key}).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *mongoIdempotencyStore) SaveResponse(ctx context.Context, key string, response map[string]interface{}) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"key": key}, bson.M{"$set": bson.M{"response": response}})
	return err
}

func (s *mongoIdempotencyStore) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"key": key})
	return err
}

func computeRequestHash(r *http.Request, bodyBytes []byte, userID string) string {
	h := sha256.New()
	h.Write([]byte(r.Method + ":" + r.URL.Path + ":" + userID + ":"))
	h.Write(bodyBytes)
	return hex.EncodeToString(h.Sum(nil))
}

// captureResponseWriter wraps http.ResponseWriter to capture status and body.
type captureResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	buf         bytes.Buffer
	wroteHeader bool
}

func (c *captureResponseWriter) WriteHeader(statusCode int) {
	if !c.wroteHeader {
		c.statusCode = statusCode
		c.ResponseWriter.WriteHeader(statusCode)
		c.wroteHeader = true
	}
}

func (c *captureResponseWriter) Write(b []byte) (int, error) {
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotent makes a mutating handler safe to replay when the client sends
// an Idempotency-Key header:
//   - first request: run the handler and store its response, unless it
//     failed with a 5xx or panicked, in which case the key is released
//   - replay with the same body: return the stored response
//   - replay with a different body: 409
//   - replay while the first is still running: 409
func Idempotent(store IdempotencyStore) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next(w, r, ps)
				return
			}

			userID := utils.GetUserIDFromRequest(r)

			// Limit body size to 1 MB to prevent memory issues
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				utils.RespondWithError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			reqHash := computeRequestHash(r, bodyBytes, userID)
			now := time.Now()
			rec := IdempotencyRecord{
				Key:         userID + ":" + key,
				Method:      r.Method,
				Path:        r.URL.Path,
				UserID:      userID,
				RequestHash: reqHash,
				CreatedAt:   now,
				ExpiresAt:   now.Add(24 * time.Hour),
			}

			ctx := r.Context()
			dup, err := store.Insert(ctx, rec)
			if err != nil {
				utils.RespondWithError(w, http.StatusInternalServerError, "idempotency lookup error")
				return
			}
			if !dup {
				// detached so a client disconnect does not lose the record
				detached := context.WithoutCancel(ctx)
				release := func() {
					if err := store.Delete(detached, rec.Key); err != nil {
						log.Printf("Idempotent: release key %s: %v", rec.Key, err)
					}
				}
				defer func() {
					if p := recover(); p != nil {
						release()
						panic(p)
					}
				}()

				crw := &captureResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
				next(crw, r, ps)

				if crw.statusCode >= http.StatusInternalServerError {
					release()
					return
				}

				var parsed interface{}
				if err := json.Unmarshal(crw.buf.Bytes(), &parsed); err != nil {
					parsed = crw.buf.String()
				}
				_ = store.SaveResponse(detached, rec.Key, map[string]interface{}{
					"status": crw.statusCode,
					"body":   parsed,
				})
				return
			}

			existing, err := store.Find(ctx, rec.Key)
			if err != nil {
				utils.RespondWithError(w, http.StatusInternalServerError, "idempotency lookup error")
				return
			}
			if existing.RequestHash != reqHash {
				utils.RespondWithError(w, http.StatusConflict, "idempotency-key conflict")
				return
			}
			if existing.Response == nil {
				utils.RespondWithError(w, http.StatusConflict, "request with this idempotency-key is still in progress")
				return
			}

			status := http.StatusOK
			switch v := existing.Response["status"].(type) {
			case int32:
				status = int(v)
			case int64:
				status = int(v)
			case int:
				status = v
			case float64:
				status = int(v)
			}
			utils.RespondWithJSON(w, status, existing.Response["body"])
		}
	}
}
