package newchat

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("not found")

// historySize is how many messages a client gets when it joins a room.
const historySize = 30

type Message struct {
	MessageID string `json:"messageid" bson:"messageid"`
	Room      string `json:"room" bson:"room"`
	SenderID  string `json:"senderId" bson:"senderId"`
	FromStaff bool   `json:"fromStaff,omitempty" bson:"fromStaff,omitempty"`
	Content   string `json:"content" bson:"content"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
}

// RoomSummary is one row of the staff inbox.
type RoomSummary struct {
	Room      string `json:"room" bson:"_id"`
	Last      string `json:"lastMessage" bson:"last"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
	Count     int    `json:"count" bson:"count"`
}

type ChatStore interface {
	Insert(ctx context.Context, m Message) error
	// Recent returns up to n messages of room, oldest first.
	Recent(ctx context.Context, room string, n int64) ([]Message, error)
	Update(ctx context.Context, senderID, id, content string) error
	Delete(ctx context.Context, senderID, id string) error
	Rooms(ctx context.Context, limit int64) ([]RoomSummary, error)
}

type mongoChatStore struct {
	coll *mongo.Collection
}

func NewMongoChatStore(coll *mongo.Collection) ChatStore {
	return &mongoChatStore{coll: coll}
}

func (s *mongoChatStore) Insert(ctx context.Context, m Message) error {
	_, err := s.coll.InsertOne(ctx, m)
	return err
}

func (s *mongoChatStore) Recent(ctx context.Context, room string, n int64) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(n)
	cur, err := s.coll.Find(ctx, bson.M{"room": room}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var history []Message
	if err := cur.All(ctx, &history); err != nil {
		return nil, err
	}
	// oldest → newest
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func (s *mongoChatStore) Update(ctx context.Context, senderID, id, content string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"messageid": id, "senderId": senderID},
		bson.M{"$set": bson.M{"content": content}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoChatStore) Delete(ctx context.Context, senderID, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"messageid": id, "senderId": senderID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoChatStore) Rooms(ctx context.Context, limit int64) ([]RoomSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.M{"timestamp": -1}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$room",
			"last":      bson.M{"$first": "$content"},
			"timestamp": bson.M{"$first": "$timestamp"},
			"count":     bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"timestamp": -1}}},
		{{Key: "$limit", Value: limit}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	rooms := []RoomSummary{}
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}
