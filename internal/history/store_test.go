package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbill/billscan/internal/model"
)

func TestStoreAddAndGet(t *testing.T) {
	s := NewStore()

	record := s.Add("bill text", model.AnalysisData{
		Summary: model.AnalysisSummary{BilledTotal: 285},
	})

	require.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())

	got, err := s.Get(record.ID)
	require.NoError(t, err)
	assert.Equal(t, record, got)
	assert.Equal(t, "bill text", got.BillText)
	assert.InDelta(t, 285, got.Data.Summary.BilledTotal, 1e-9)
}

func TestStoreGetMissing(t *testing.T) {
	s := NewStore()

	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListNewestFirst(t *testing.T) {
	s := NewStore()

	first := s.Add("first", model.AnalysisData{})
	second := s.Add("second", model.AnalysisData{})
	third := s.Add("third", model.AnalysisData{})

	list := s.List()
	require.Len(t, list, 3)
	assert.False(t, list[0].CreatedAt.Before(list[1].CreatedAt))
	assert.False(t, list[1].CreatedAt.Before(list[2].CreatedAt))

	ids := map[string]bool{list[0].ID: true, list[1].ID: true, list[2].ID: true}
	assert.True(t, ids[first.ID])
	assert.True(t, ids[second.ID])
	assert.True(t, ids[third.ID])
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			record := s.Add(fmt.Sprintf("bill %d", i), model.AnalysisData{})
			_, err := s.Get(record.ID)
			assert.NoError(t, err)
			s.List()
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.List(), 20)
}
