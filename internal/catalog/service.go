package catalog

import (
	"context"
	"log"
	"strconv"
	"strings"
)

// ItemStore reads catalog item payloads from the external item store,
// keyed by the per-catalog id column.
type ItemStore interface {
	Items(ctx context.Context, catalogName string, itemIDs []string) ([]map[string]any, error)
}

// ItemCache is a best-effort cache in front of the ItemStore. A nil cache
// is valid.
type ItemCache interface {
	Get(ctx context.Context, catalogName, itemID string) (map[string]any, bool)
	Set(ctx context.Context, catalogName, itemID string, data map[string]any)
}

type Service struct {
	repo  *Repo
	store ItemStore
	cache ItemCache
}

func NewService(repo *Repo, store ItemStore, cache ItemCache) *Service {
	return &Service{repo: repo, store: store, cache: cache}
}

func (s *Service) Save(ctx context.Context, item *Item) error {
	return s.repo.Create(ctx, item)
}

// List returns the user's saved references, optionally joined with live item
// data. Item-store failures degrade to references without data; the list
// itself never fails on the external store.
func (s *Service) List(ctx context.Context, userID uint64, catalogName string, includeData bool) ([]ItemWithData, error) {
	items, err := s.repo.List(ctx, userID, catalogName)
	if err != nil {
		return nil, err
	}

	out := make([]ItemWithData, 0, len(items))
	for _, item := range items {
		out = append(out, ItemWithData{Item: item})
	}
	if !includeData || len(out) == 0 || s.store == nil {
		return out, nil
	}

	// group by catalog name for batch fetching
	byCatalog := map[string][]int{}
	for i, item := range items {
		byCatalog[item.CatalogName] = append(byCatalog[item.CatalogName], i)
	}

	for name, indexes := range byCatalog {
		lookup := map[string]map[string]any{}

		var missing []string
		for _, i := range indexes {
			id := items[i].CatalogItemID
			if s.cache != nil {
				if data, ok := s.cache.Get(ctx, name, id); ok {
					lookup[id] = data
					continue
				}
			}
			missing = append(missing, id)
		}

		if len(missing) > 0 {
			fetched, err := s.store.Items(ctx, name, missing)
			if err != nil {
				log.Printf("catalog: item store fetch failed catalog=%s err=%v", name, err)
				continue
			}
			idColumn := idColumnFor(name)
			for _, data := range fetched {
				id := idValue(data[idColumn])
				if id == "" {
					continue
				}
				lookup[id] = data
				if s.cache != nil {
					s.cache.Set(ctx, name, id, data)
				}
			}
		}

		for _, i := range indexes {
			out[i].ItemData = lookup[items[i].CatalogItemID]
		}
	}
	return out, nil
}

func (s *Service) DeleteBulk(ctx context.Context, userID uint64, ids []uint64) (deleted []uint64, notFound []uint64, err error) {
	return s.repo.DeleteBulk(ctx, userID, ids)
}

// idColumnFor maps catalog names onto their item-store id column.
func idColumnFor(catalogName string) string {
	name := strings.ToLower(catalogName)
	switch {
	case strings.Contains(name, "property"):
		return "property_id"
	case strings.Contains(name, "job"):
		return "job_id"
	default:
		return "id"
	}
}

// idValue renders the store's id cell as a string; ids can come back as
// strings or integers depending on the view.
func idValue(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case int64:
		return strconv.FormatInt(id, 10)
	case float64:
		return strconv.FormatInt(int64(id), 10)
	default:
		return ""
	}
}
