// Package bigquery reads catalog item payloads out of the BigQuery views
// the data pipeline maintains for property and job listings.
package bigquery

import (
	"context"
	"fmt"
	"strings"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

type tableInfo struct {
	table    string
	idColumn string
}

type Store struct {
	client *bq.Client
	tables map[string]tableInfo
}

// New opens a BigQuery client with Application Default Credentials. Table
// names are fully qualified dataset.view strings.
func New(ctx context.Context, project, propertyTable, jobTable string) (*Store, error) {
	client, err := bq.NewClient(ctx, project)
	if err != nil {
		return nil, err
	}
	return &Store{
		client: client,
		tables: map[string]tableInfo{
			"property_listing": {table: propertyTable, idColumn: "property_id"},
			"job_listing":      {table: jobTable, idColumn: "job_id"},
		},
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Items fetches the rows for the given item ids from the catalog's view.
func (s *Store) Items(ctx context.Context, catalogName string, itemIDs []string) ([]map[string]any, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	info, ok := s.tables[strings.ToLower(catalogName)]
	if !ok {
		return nil, fmt.Errorf("bigquery: unknown catalog %q", catalogName)
	}

	q := s.client.Query(fmt.Sprintf(
		"SELECT * FROM `%s` WHERE CAST(%s AS STRING) IN UNNEST(@ids)",
		info.table, info.idColumn,
	))
	q.Parameters = []bq.QueryParameter{{Name: "ids", Value: itemIDs}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	for {
		var row map[string]bq.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		item := make(map[string]any, len(row))
		for k, v := range row {
			item[k] = v
		}
		items = append(items, item)
	}
	return items, nil
}
