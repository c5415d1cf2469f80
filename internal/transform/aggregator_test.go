package transform

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"chatlytics/internal/models"
	"chatlytics/internal/spill"
)

func feed(t *testing.T, a *Aggregator, resource, data string) {
	t.Helper()
	if err := a.Consume(&spill.Record{Resource: resource, Data: json.RawMessage(data)}); err != nil {
		t.Fatalf("Consume(%s): %v", resource, err)
	}
}

// smallCorpus is three users, two chats (one private, one group), four
// messages across two days, and one marketplace item sold at 100.00.
func smallCorpus() []spill.Record {
	rows := []struct{ resource, data string }{
		{models.ResourceUsers, `{"id":1,"username":"ana","is_active":true,"created_at":"2023-12-01T00:00:00Z"}`},
		{models.ResourceUsers, `{"id":2,"username":"bo","is_active":true,"created_at":"2023-12-02T00:00:00Z"}`},
		{models.ResourceUsers, `{"id":3,"username":"cyd","is_active":false,"created_at":"2023-12-03T00:00:00Z"}`},
		{models.ResourceChats, `{"id":10,"name":null,"chat_type":"private","created_at":"2023-12-10T00:00:00Z"}`},
		{models.ResourceChats, `{"id":11,"name":"Market","chat_type":"group","created_at":"2023-12-11T00:00:00Z"}`},
		{models.ResourceMessages, `{"id":101,"sender_id":1,"chat_id":10,"sent_at":"2024-01-02T10:15:00Z"}`},
		{models.ResourceMessages, `{"id":102,"sender_id":2,"chat_id":10,"sent_at":"2024-01-02T10:16:00Z"}`},
		{models.ResourceMessages, `{"id":103,"sender_id":1,"chat_id":11,"sent_at":"2024-01-03T14:00:00Z"}`},
		{models.ResourceMessages, `{"id":104,"sender_id":3,"chat_id":11,"sent_at":"2024-01-03T14:01:00Z"}`},
		{models.ResourceMarketplaceItems, `{"seller_id":1,"chat_id":11,"price":100.00,"status":"sold","created_at":"2024-01-03","sold_at":"2024-01-04"}`},
	}
	out := make([]spill.Record, len(rows))
	for i, r := range rows {
		out[i] = spill.Record{Resource: r.resource, Data: json.RawMessage(r.data)}
	}
	return out
}

func aggregate(t *testing.T, recs []spill.Record) *models.TransformedData {
	t.Helper()
	a := NewAggregator()
	for i := range recs {
		if err := a.Consume(&recs[i]); err != nil {
			t.Fatalf("Consume record %d: %v", i, err)
		}
	}
	return a.Finalize()
}

func TestAggregateSmallCorpus(t *testing.T) {
	t.Parallel()

	got := aggregate(t, smallCorpus())

	require.Len(t, got.UserStatistics, 3)
	ana := got.UserStatistics[0]
	require.Equal(t, 1, ana.UserID)
	require.Equal(t, "ana", ana.Username)
	require.Equal(t, 2, ana.TotalMessagesSent)
	require.Equal(t, 2, ana.ChatsParticipated)
	require.NotNil(t, ana.LastMessageDate)
	require.Equal(t, "2024-01-03T14:00:00Z", *ana.LastMessageDate)
	require.Equal(t, 1, got.UserStatistics[1].TotalMessagesSent)
	require.Equal(t, 1, got.UserStatistics[2].TotalMessagesSent)

	require.Len(t, got.ChatStatistics, 2)
	private := got.ChatStatistics[0]
	require.Equal(t, 10, private.ChatID)
	require.Equal(t, "Private chat", private.ChatName)
	require.Equal(t, "private", private.ChatType)
	require.Equal(t, 2, private.TotalMessages)
	require.Equal(t, 2, private.UniqueSenders)
	require.Equal(t, "2024-01-02T10:15:00Z", *private.FirstMessageDate)
	require.Equal(t, "2024-01-02T10:16:00Z", *private.LastMessageDate)
	group := got.ChatStatistics[1]
	require.Equal(t, "Market", group.ChatName)
	require.Equal(t, 2, group.TotalMessages)

	require.Equal(t, []models.DailyMessageStats{
		{Date: "2024-01-02", TotalMessages: 2, UniqueUsers: 2, UniqueChats: 1, PrivateMessages: 2},
		{Date: "2024-01-03", TotalMessages: 2, UniqueUsers: 2, UniqueChats: 1, GroupMessages: 2},
	}, got.DailyMessageStats)

	require.Equal(t, []models.HourlyMessageStats{
		{Hour: 10, TotalMessages: 2},
		{Hour: 14, TotalMessages: 2},
	}, got.HourlyMessageStats)

	// 2024-01-02 was a Tuesday, 2024-01-03 a Wednesday. Every weekday row is
	// emitted, zero or not.
	require.Len(t, got.WeekdayMessageStats, 7)
	require.Equal(t, models.WeekdayMessageStats{
		Weekday: 1, WeekdayName: "Tue", TotalMessages: 2, UniqueUsers: 2, UniqueChats: 1,
	}, got.WeekdayMessageStats[1])
	require.Equal(t, models.WeekdayMessageStats{
		Weekday: 2, WeekdayName: "Wed", TotalMessages: 2, UniqueUsers: 2, UniqueChats: 1,
	}, got.WeekdayMessageStats[2])
	require.Equal(t, 0, got.WeekdayMessageStats[0].TotalMessages)

	require.Equal(t, []models.MessageTypeSummary{{MessageType: "text", TotalCount: 4}}, got.MessageTypeSummary)

	mkt := got.MarketplaceStatistics
	require.Equal(t, 1, mkt.TotalItems)
	require.Equal(t, 1, mkt.SoldItems)
	require.Equal(t, 0, mkt.ActiveItems)
	require.InDelta(t, 100.00, mkt.TotalRevenue, 0.001)
	require.InDelta(t, 100.00, mkt.AveragePrice, 0.001)
	require.Equal(t, []models.TopSeller{
		{SellerID: 1, Username: "ana", ItemsSold: 1, TotalRevenue: 100.00},
	}, mkt.TopSellers)

	require.Equal(t, []models.SellerStatistics{{
		SellerID: 1, Username: "ana", TotalItemsListed: 1, SoldItems: 1,
		AvgListingPrice: 100.00, TotalListedValue: 100.00, TotalSoldValue: 100.00,
	}}, got.SellerStatistics)

	require.Equal(t, []models.ChatMarketplaceStats{
		{ChatID: 11, ChatName: "Market", TotalItems: 1, SoldItems: 1},
	}, got.ChatMarketplaceStats)

	require.Equal(t, []models.DailyMarketplaceStats{
		{Date: "2024-01-03", ItemsListed: 1, AvgListingPrice: 100.00},
		{Date: "2024-01-04", ItemsSold: 1},
	}, got.DailyMarketplaceStats)

	// The item has no category, so no category rows at all.
	require.Empty(t, got.CategoryStatistics)
	require.Empty(t, got.SellerCategoryStats)
}

func TestAggregateOrderIndependence(t *testing.T) {
	t.Parallel()

	base := smallCorpus()
	want, err := json.Marshal(aggregate(t, base))
	if err != nil {
		t.Fatal(err)
	}

	for seed := int64(1); seed <= 5; seed++ {
		shuffled := make([]spill.Record, len(base))
		copy(shuffled, base)
		rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		got, err := json.Marshal(aggregate(t, shuffled))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(want) {
			t.Fatalf("seed %d: shuffled output differs from ordered output", seed)
		}
	}
}

func TestMessageDedupAcrossSweeps(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	feed(t, a, models.ResourceUsers, `{"id":1,"username":"ana","is_active":true,"created_at":"2023-12-01T00:00:00Z"}`)
	feed(t, a, models.ResourceMessages, `{"id":5,"sender_id":1,"chat_id":10,"sent_at":"2024-01-02T10:00:00Z"}`)
	// Same message again via the per-chat sweep: must not double count.
	feed(t, a, models.ResourceChatMessages, `{"id":5,"sender_id":1,"chat_id":10,"sent_at":"2024-01-02T10:00:00Z"}`)
	// A chat-sweep message with a fresh id counts.
	feed(t, a, models.ResourceChatMessages, `{"id":6,"sender_id":1,"chat_id":10,"sent_at":"2024-01-02T11:00:00Z"}`)
	// An id-less chat-sweep message is dropped; the global sweep owns those.
	feed(t, a, models.ResourceChatMessages, `{"sender_id":1,"chat_id":10,"sent_at":"2024-01-02T12:00:00Z"}`)
	// An id-less global message still counts.
	feed(t, a, models.ResourceMessages, `{"sender_id":1,"chat_id":10,"sent_at":"2024-01-02T13:00:00Z"}`)

	out := a.Finalize()
	require.Len(t, out.UserStatistics, 1)
	require.Equal(t, 3, out.UserStatistics[0].TotalMessagesSent)
}

func TestAggregateSkipsBadTimestampsAndTypes(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	feed(t, a, models.ResourceUsers, `{"id":1,"username":"ana","is_active":true,"created_at":"2023-12-01T00:00:00Z"}`)
	feed(t, a, models.ResourceMessages, `{"id":1,"sender_id":1,"chat_id":10,"sent_at":"garbage","message_type":"image"}`)
	feed(t, a, models.ResourceMessages, `{"id":2,"sender_id":1,"chat_id":10,"sent_at":"2024-01-02T25:15:00Z"}`)

	out := a.Finalize()
	// Both messages count for the user even with broken timestamps.
	require.Equal(t, 2, out.UserStatistics[0].TotalMessagesSent)
	// Neither lands in an hourly bucket: one unparseable, one hour out of range.
	require.Empty(t, out.HourlyMessageStats)
	// Unparseable timestamps skip the weekday buckets only.
	for _, wd := range out.WeekdayMessageStats {
		require.Equal(t, 0, wd.TotalMessages)
	}
	require.Equal(t, []models.MessageTypeSummary{
		{MessageType: "image", TotalCount: 1},
		{MessageType: "text", TotalCount: 1},
	}, out.MessageTypeSummary)
}

func TestCategoryAndSellerCoverage(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	feed(t, a, models.ResourceUsers, `{"id":1,"username":"ana","is_active":true,"created_at":"2023-12-01T00:00:00Z"}`)
	feed(t, a, models.ResourceCategories, `{"id":7,"name":"books"}`)
	feed(t, a, models.ResourceSellers, `{"user_id":1,"category_ids":[7,9]}`)
	feed(t, a, models.ResourceSellers, `{"user_id":2,"category_ids":[7]}`)
	feed(t, a, models.ResourceMarketplaceItems, `{"seller_id":1,"category_id":7,"price":10.0,"status":"active","created_at":"2024-01-05"}`)
	feed(t, a, models.ResourceMarketplaceItems, `{"seller_id":1,"category_id":7,"price":14.0,"status":"cancelled","created_at":"2024-01-05"}`)
	feed(t, a, models.ResourceMarketplaceItems, `{"seller_id":2,"price":99.0,"status":"active","created_at":"2024-01-05"}`)

	out := a.Finalize()
	require.Equal(t, []models.CategoryStatistics{{
		CategoryID: 7, CategoryName: "books", TotalItems: 2,
		ActiveItems: 1, CancelledItems: 1, AvgPrice: 12.00,
	}}, out.CategoryStatistics)
	require.Equal(t, []models.SellerCategoryStats{
		{CategoryID: 7, CategoryName: "books", SellersCount: 2},
		{CategoryID: 9, CategoryName: "", SellersCount: 1},
	}, out.SellerCategoryStats)
	// Seller 2 has no user row: fallback username.
	require.Equal(t, "user 2", out.SellerStatistics[1].Username)
}

func TestRound2HalfEven(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want float64
	}{
		{0.125, 0.12}, // exact .5: rounds to even
		{0.375, 0.38},
		{2.344, 2.34},
		{2.346, 2.35},
		{100.0, 100.0},
	}
	for _, tc := range cases {
		if got := round2(tc.in); got != tc.want {
			t.Fatalf("round2(%v)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWeekdayOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ts   string
		want int
		ok   bool
	}{
		{"2024-01-01T00:00:00Z", 0, true}, // Monday
		{"2024-01-07T23:59:59Z", 6, true}, // Sunday
		{"2024-01-03T14:00:00Z", 2, true}, // Wednesday
		{"not a timestamp", 0, false},
		{"2024-01-03", 0, false},
	}
	for _, tc := range cases {
		got, ok := weekdayOf(tc.ts)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("weekdayOf(%q)=(%d,%v), want (%d,%v)", tc.ts, got, ok, tc.want, tc.ok)
		}
	}
}
