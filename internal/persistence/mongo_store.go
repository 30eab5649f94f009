package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/seqflow/pkg/api"
)

// MongoStore is a Store backed by two MongoDB collections, one for runs and
// one for events.
type MongoStore struct {
	runs   *mongo.Collection
	events *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore creates a Mongo-backed store.
// dbName defaults to "seqflow" if empty.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	if dbName == "" {
		dbName = "seqflow"
	}
	db := client.Database(dbName)
	return &MongoStore{
		runs:   db.Collection("runs"),
		events: db.Collection("worker_events"),
	}
}

type mongoRunDoc struct {
	ID         string    `bson:"_id"`
	Task       string    `bson:"task"`
	State      string    `bson:"state"`
	Params     string    `bson:"params,omitempty"`
	Values     int       `bson:"values"`
	LastValue  string    `bson:"last_value,omitempty"`
	Error      string    `bson:"error,omitempty"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
}

type mongoEventDoc struct {
	WorkerID string    `bson:"worker_id"`
	At       time.Time `bson:"at"`
	Type     string    `bson:"type"`
	Task     string    `bson:"task,omitempty"`
	Seq      int       `bson:"seq"`
	Detail   string    `bson:"detail,omitempty"`
}

func toMongoRun(run *api.Run) mongoRunDoc {
	return mongoRunDoc{
		ID:         run.ID,
		Task:       run.Task,
		State:      run.State.String(),
		Params:     run.Params,
		Values:     run.Values,
		LastValue:  run.LastValue,
		Error:      run.Err,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

func (d mongoRunDoc) toRun() *api.Run {
	st, _ := api.ParseWorkerState(d.State)
	return &api.Run{
		ID:         d.ID,
		Task:       d.Task,
		State:      st,
		Params:     d.Params,
		Values:     d.Values,
		LastValue:  d.LastValue,
		Err:        d.Error,
		StartedAt:  d.StartedAt,
		FinishedAt: d.FinishedAt,
	}
}

func (s *MongoStore) SaveRun(ctx context.Context, run *api.Run) error {
	_, err := s.runs.InsertOne(ctx, toMongoRun(run))
	return err
}

func (s *MongoStore) UpdateRun(ctx context.Context, run *api.Run) error {
	doc := toMongoRun(run)
	update := bson.M{
		"$set": bson.M{
			"task":        doc.Task,
			"state":       doc.State,
			"params":      doc.Params,
			"values":      doc.Values,
			"last_value":  doc.LastValue,
			"error":       doc.Error,
			"started_at":  doc.StartedAt,
			"finished_at": doc.FinishedAt,
		},
	}

	res, err := s.runs.UpdateByID(ctx, run.ID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *MongoStore) GetRun(ctx context.Context, id string) (*api.Run, error) {
	var doc mongoRunDoc
	err := s.runs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return doc.toRun(), nil
}

func (s *MongoStore) ListRuns(ctx context.Context, opts api.RunListOptions) ([]*api.Run, error) {
	filter := bson.M{}
	if opts.Task != "" {
		filter["task"] = opts.Task
	}
	if opts.OnlyState != nil {
		filter["state"] = opts.OnlyState.String()
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.runs.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	runs := []*api.Run{}
	for cur.Next(ctx) {
		var doc mongoRunDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		runs = append(runs, doc.toRun())
	}
	return runs, cur.Err()
}

func (s *MongoStore) AppendEvent(ctx context.Context, ev api.WorkerEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.events.InsertOne(ctx, mongoEventDoc{
		WorkerID: ev.WorkerID,
		At:       at,
		Type:     string(ev.Type),
		Task:     ev.Task,
		Seq:      ev.Seq,
		Detail:   ev.Detail,
	})
	return err
}

func (s *MongoStore) ListEvents(ctx context.Context, workerID string) ([]api.WorkerEvent, error) {
	// ObjectIDs grow with insertion, which keeps append order.
	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.events.Find(ctx, bson.M{"worker_id": workerID}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []api.WorkerEvent
	for cur.Next(ctx) {
		var doc mongoEventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, api.WorkerEvent{
			WorkerID: doc.WorkerID,
			At:       doc.At,
			Type:     api.EventType(doc.Type),
			Task:     doc.Task,
			Seq:      doc.Seq,
			Detail:   doc.Detail,
		})
	}
	return out, cur.Err()
}
