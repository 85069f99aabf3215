package azure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// AzureTableEnumerator walks a table query page by page, yielding one
// entity at a time.
type AzureTableEnumerator struct {
	ctx     context.Context
	pager   *runtime.Pager[aztables.ListEntitiesResponse]
	page    [][]byte
	index   int
	current *entity
	err     error
}

func NewAzureTableEnumerator(ctx context.Context, pager *runtime.Pager[aztables.ListEntitiesResponse]) *AzureTableEnumerator {
	return &AzureTableEnumerator{
		ctx:   ctx,
		pager: pager,
	}
}

func (e *AzureTableEnumerator) MoveNext() bool {
	if e.err != nil {
		return false
	}

	for e.index >= len(e.page) {
		if !e.pager.More() {
			return false
		}
		resp, err := e.pager.NextPage(e.ctx)
		if err != nil {
			e.err = fmt.Errorf("failed to fetch next page: %w", err)
			return false
		}
		e.page = resp.Entities
		e.index = 0
	}

	var row entity
	if err := json.Unmarshal(e.page[e.index], &row); err != nil {
		e.err = fmt.Errorf("failed to unmarshal entity: %w", err)
		return false
	}
	e.index++
	e.current = &row
	return true
}

func (e *AzureTableEnumerator) Current() (*entity, error) {
	return e.current, e.err
}

func (e *AzureTableEnumerator) Err() error {
	return e.err
}

func (e *AzureTableEnumerator) Dispose() {}
