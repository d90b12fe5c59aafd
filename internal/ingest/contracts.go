package ingest

import (
	"context"

	"github.com/christoofar/FogLAMP/internal/models"
)

// StorageClient is the slice of the storage layer the ingest engine
// consumes. *store.Store satisfies it.
type StorageClient interface {
	QueryTable(ctx context.Context, table string, payload []byte) (*models.ResultSet, error)
	InsertTable(ctx context.Context, table string, payload []byte) error
	UpdateTable(ctx context.Context, table string, payload []byte) (int64, error)
	ReadingAppend(ctx context.Context, readings []*models.Reading) error
	PluginDataLoad(ctx context.Context, key string) (string, error)
	PluginDataSave(ctx context.Context, key, data string) error
}

// ManagementClient is the management-plane contract the engine and the
// filter pipeline consume.
type ManagementClient interface {
	GetAssetTrackingTuples(ctx context.Context, service string) ([]models.AssetTrackingTuple, error)
	AddAssetTrackingTuple(ctx context.Context, service, plugin, asset, event string) error
	GetCategory(ctx context.Context, name string) (models.Category, error)
	AddChildCategories(ctx context.Context, parent string, children []string) error
}
