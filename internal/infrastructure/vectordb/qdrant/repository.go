// Package qdrant provides a ReferenceStore implementation using Qdrant.
package qdrant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
)

// pointNamespace scopes point ids derived from reference doc ids.
var pointNamespace = uuid.MustParse("6f1c2f7e-3b0a-5d7e-9c4e-2a8b1f0d9e61")

// Repository implements ports.ReferenceStore and ports.CollectionManager using Qdrant.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection name is required")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Collection returns the collection name.
func (r *Repository) Collection() string {
	return r.collection
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// DeleteCollection removes the collection and all its references.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Upsert stores references with their vectors. Re-indexing a doc id replaces it.
func (r *Repository) Upsert(ctx context.Context, refs []entities.Reference, vectors [][]float32) error {
	if len(refs) != len(vectors) {
		return fmt.Errorf("got %d references and %d vectors", len(refs), len(vectors))
	}
	if len(refs) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, 0, len(refs))
	for i := range refs {
		points = append(points, referenceToPoint(refs[i], vectors[i]))
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// Search returns the references nearest to the vector, best first.
func (r *Repository) Search(ctx context.Context, vector []float32, limit int) ([]entities.Reference, error) {
	if limit <= 0 {
		return nil, nil
	}

	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	refs := make([]entities.Reference, 0, len(resp.Result))
	for _, point := range resp.Result {
		ref := payloadToReference(point.Payload)
		ref.Score = float64(point.Score)
		refs = append(refs, ref)
	}

	return refs, nil
}

// Count returns the number of stored references.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// PointID returns the point id a reference is stored under.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

func referenceToPoint(ref entities.Reference, vector []float32) *pb.PointStruct {
	classes := make([]*pb.Value, 0, len(ref.Classes))
	for _, c := range ref.Classes {
		classes = append(classes, stringValue(c))
	}

	return &pb.PointStruct{
		Id: &pb.PointId{
			PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(ref.ID)},
		},
		Vectors: &pb.Vectors{
			VectorsOptions: &pb.Vectors_Vector{
				Vector: &pb.Vector{Data: vector},
			},
		},
		Payload: map[string]*pb.Value{
			"doc_id":  stringValue(ref.ID),
			"title":   stringValue(ref.Title),
			"source":  stringValue(ref.Source),
			"path":    stringValue(ref.Path),
			"snippet": stringValue(ref.Snippet),
			"classes": {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: classes}}},
		},
	}
}

func payloadToReference(payload map[string]*pb.Value) entities.Reference {
	ref := entities.Reference{
		ID:      getStringValue(payload, "doc_id"),
		Title:   getStringValue(payload, "title"),
		Source:  getStringValue(payload, "source"),
		Path:    getStringValue(payload, "path"),
		Snippet: getStringValue(payload, "snippet"),
	}
	if v, ok := payload["classes"]; ok {
		for _, c := range v.GetListValue().GetValues() {
			if s := c.GetStringValue(); s != "" {
				ref.Classes = append(ref.Classes, s)
			}
		}
	}
	return ref
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}
