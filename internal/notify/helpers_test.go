package notify

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/mock"

	"github.com/camarohq/hunter/internal/model"
	"github.com/camarohq/hunter/internal/relevance"
)

var fixedNow = time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)

func testComposer() Composer {
	return Composer{
		Target:       relevance.Target{Model: "Camaro", Year: 1969, MinYear: 1960, MaxYear: 1979},
		DashboardURL: "https://dash.test/camaro",
		Now:          func() time.Time { return fixedNow },
	}
}

func sampleListings() []model.Listing {
	return []model.Listing{
		{Identity: "a1", Source: "Kijiji", Title: "69 Camaro RS", PriceDisplay: "C$38,000", PriceAmount: 38000, URL: "https://k.test/1", Location: "Ontario, Canada", ListedAt: "2024-03-09T10:00:00Z", IsNew: true},
		{Identity: "b2", Source: "BringATrailer", Title: "1969 Chevrolet Camaro Z/28", URL: "https://bat.test/z28", ImageURL: "https://bat.test/z28.jpg", IsAuction: true, IsNew: true},
		{Identity: "c3", Source: "Kijiji", Title: "1969 Camaro project", PriceDisplay: "$9,500", PriceAmount: 9500, URL: "https://k.test/2", IsNew: true},
	}
}

type mockNotion struct {
	mock.Mock
}

func (m *mockNotion) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *mockNotion) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

type stubNotifier struct {
	name  string
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Notify(_ context.Context, _ []model.Listing) error {
	s.calls++
	return s.err
}
