package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/gcp"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("bigquery: gcp project id is required")
	errDatasetRequired      = errors.New("bigquery: dataset is required")
	errTableNameRequired    = errors.New("bigquery: table name is required")
	errClientNotInitialized = errors.New("bigquery: client not initialized")
)

// Client is a dataset-scoped BigQuery handle for the analytics worker.
type Client struct {
	bq          *bigquery.Client
	dataset     *bigquery.Dataset
	orderEvents string
}

// NewClient connects and refuses to start unless the dataset and the order
// events table already exist. Schema is managed outside this service.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	table := strings.TrimSpace(cfg.OrderEventsTable)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case dataset == "":
		return nil, errDatasetRequired
	case table == "":
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(dataset), orderEvents: table}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "table": table}), "bigquery ready")
	}
	return c, nil
}

// Ping checks that the dataset and the order events table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeMissing("dataset", c.dataset.DatasetID, err)
	}
	if _, err := c.dataset.Table(c.orderEvents).Metadata(ctx); err != nil {
		return describeMissing("table", c.orderEvents, err)
	}
	return nil
}

func describeMissing(kind, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("bigquery %s %q does not exist", kind, name)
	}
	return fmt.Errorf("bigquery %s %q: %w", kind, name, err)
}

func (c *Client) OrderEventsTable() string {
	if c == nil {
		return ""
	}
	return c.orderEvents
}

// InsertRows streams rows into table. Rows implementing bigquery.ValueSaver
// supply their own insert ids, so a retried batch dedupes server side.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.bq == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
