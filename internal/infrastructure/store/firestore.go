package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore stores each record as a document in one collection.
type Firestore struct {
	client     *firestore.Client
	collection string
}

// NewFirestore connects to Firestore in the given GCP project using
// application default credentials.
func NewFirestore(ctx context.Context, project, collection string) (*Firestore, error) {
	if project == "" {
		project = firestore.DetectProjectID
	}
	if collection == "" {
		collection = DefaultTable
	}
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Firestore{client: client, collection: collection}, nil
}

func (f *Firestore) Get(ctx context.Context, id string) (Document, error) {
	snap, err := f.client.Collection(f.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return Document(snap.Data()), nil
}

// MergePatch writes the patch with MergeAll, which merges nested maps the
// same way Merge does.
func (f *Firestore) MergePatch(ctx context.Context, id string, patch map[string]any) error {
	normalized, err := normalize(patch)
	if err != nil {
		return err
	}
	_, err = f.client.Collection(f.collection).Doc(id).Set(ctx, firestoreData(normalized), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to patch record %s: %w", id, err)
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

// firestoreData replaces nil values with the Delete sentinel so removed
// fields are deleted rather than set to null.
func firestoreData(patch map[string]any) map[string]any {
	out := make(map[string]any, len(patch))
	for k, v := range patch {
		switch val := v.(type) {
		case nil:
			out[k] = firestore.Delete
		case map[string]any:
			out[k] = firestoreData(val)
		default:
			out[k] = v
		}
	}
	return out
}
