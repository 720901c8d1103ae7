package repositories

import (
	"context"
	"errors"
	"fmt"
	"notely/internal/database/models"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NoteContentRepository stores note bodies and tags. Records are addressed
// by their ref, the hex form of the document id.
type NoteContentRepository interface {
	Create(ctx context.Context, content *models.NoteContent) error
	GetByRef(ctx context.Context, ref string) (*models.NoteContent, error)
	// GetByRefs fetches all records in refs with a single lookup, keyed by
	// ref. Unknown or malformed refs are absent from the result.
	GetByRefs(ctx context.Context, refs []string) (map[string]models.NoteContent, error)
	Update(ctx context.Context, ref string, content string, tags []string) (*models.NoteContent, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, ref string) (bool, error)
	// CreatedBefore pages through records created before cutoff, in ref
	// order, starting after the given ref ("" for the first page).
	CreatedBefore(ctx context.Context, cutoff time.Time, after string, limit int) ([]models.NoteContent, error)
	DeleteMany(ctx context.Context, refs []string) (int64, error)
}

type noteContentRepository struct {
	coll *mongo.Collection
}

func NewNoteContentRepository(coll *mongo.Collection) NoteContentRepository {
	return &noteContentRepository{coll: coll}
}

func (r *noteContentRepository) Create(ctx context.Context, content *models.NoteContent) error {
	if content.Tags == nil {
		content.Tags = []string{}
	}
	res, err := r.coll.InsertOne(ctx, content)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("error creating note content: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("error creating note content: unexpected id type %T", res.InsertedID)
	}
	content.ID = id
	return nil
}

func (r *noteContentRepository) GetByRef(ctx context.Context, ref string) (*models.NoteContent, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, ErrNotFound
	}
	content := models.NoteContent{}
	err = r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&content)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting note content: %w", err)
	}
	return &content, nil
}

func (r *noteContentRepository) GetByRefs(ctx context.Context, refs []string) (map[string]models.NoteContent, error) {
	found := make(map[string]models.NoteContent, len(refs))
	ids := objectIDs(refs)
	if len(ids) == 0 {
		return found, nil
	}

	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("error querying note contents: %w", err)
	}
	var contents []models.NoteContent
	if err := cur.All(ctx, &contents); err != nil {
		return nil, fmt.Errorf("error decoding note contents: %w", err)
	}
	for _, c := range contents {
		found[c.Ref()] = c
	}
	return found, nil
}

func (r *noteContentRepository) Update(ctx context.Context, ref string, content string, tags []string) (*models.NoteContent, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, ErrNotFound
	}
	if tags == nil {
		tags = []string{}
	}
	updated := models.NoteContent{}
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"content": content, "tags": tags}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error updating note content: %w", err)
	}
	return &updated, nil
}

func (r *noteContentRepository) Delete(ctx context.Context, ref string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return false, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("error deleting note content: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// CreatedBefore relies on object ids embedding their creation second.
func (r *noteContentRepository) CreatedBefore(ctx context.Context, cutoff time.Time, after string, limit int) ([]models.NoteContent, error) {
	idFilter := bson.M{"$lt": primitive.NewObjectIDFromTimestamp(cutoff)}
	if after != "" {
		afterID, err := primitive.ObjectIDFromHex(after)
		if err != nil {
			return nil, fmt.Errorf("error paging note contents: %w", err)
		}
		idFilter["$gt"] = afterID
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.M{"_id": idFilter}, opts)
	if err != nil {
		return nil, fmt.Errorf("error paging note contents: %w", err)
	}
	contents := []models.NoteContent{}
	if err := cur.All(ctx, &contents); err != nil {
		return nil, fmt.Errorf("error decoding note contents: %w", err)
	}
	return contents, nil
}

func (r *noteContentRepository) DeleteMany(ctx context.Context, refs []string) (int64, error) {
	ids := objectIDs(refs)
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("error deleting note contents: %w", err)
	}
	return res.DeletedCount, nil
}

func objectIDs(refs []string) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(refs))
	for _, ref := range refs {
		if id, err := primitive.ObjectIDFromHex(ref); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
