package transform

import (
	"sort"

	"chatlytics/internal/models"
)

// Finalize converts the accumulated state into the transformed document:
// sets become cardinalities, sum/count pairs become means (0 when the count
// is 0), money values are rounded, and every slice is sorted by its primary
// key so repeated runs over the same source emit identical output.
func (a *Aggregator) Finalize() *models.TransformedData {
	out := &models.TransformedData{}

	out.UserStatistics = make([]models.UserStatistics, 0, len(a.users))
	for id, u := range a.users {
		row := models.UserStatistics{
			UserID:    id,
			Username:  u.Username,
			IsActive:  u.IsActive,
			CreatedAt: u.CreatedAt,
		}
		if acc := a.userMsgs[id]; acc != nil {
			row.TotalMessagesSent = acc.count
			row.ChatsParticipated = len(acc.chatIDs)
			if acc.lastSent != "" {
				last := acc.lastSent
				row.LastMessageDate = &last
			}
		}
		out.UserStatistics = append(out.UserStatistics, row)
	}
	sort.Slice(out.UserStatistics, func(i, j int) bool {
		return out.UserStatistics[i].UserID < out.UserStatistics[j].UserID
	})

	out.ChatStatistics = make([]models.ChatStatistics, 0, len(a.chats))
	for id, c := range a.chats {
		row := models.ChatStatistics{
			ChatID:    id,
			ChatName:  a.chatNameFor(id),
			ChatType:  c.ChatType,
			CreatedAt: c.CreatedAt,
		}
		if acc := a.chatMsgs[id]; acc != nil {
			row.TotalMessages = acc.count
			row.UniqueSenders = len(acc.senders)
			if acc.firstSent != "" {
				first := acc.firstSent
				row.FirstMessageDate = &first
			}
			if acc.lastSent != "" {
				last := acc.lastSent
				row.LastMessageDate = &last
			}
		}
		out.ChatStatistics = append(out.ChatStatistics, row)
	}
	sort.Slice(out.ChatStatistics, func(i, j int) bool {
		return out.ChatStatistics[i].ChatID < out.ChatStatistics[j].ChatID
	})

	out.DailyMessageStats = make([]models.DailyMessageStats, 0, len(a.daily))
	for date, acc := range a.daily {
		row := models.DailyMessageStats{
			Date:          date,
			TotalMessages: acc.total,
			UniqueUsers:   len(acc.users),
			UniqueChats:   len(acc.perChat),
		}
		for chatID, n := range acc.perChat {
			// Unknown chats count as private, like an unnamed direct chat.
			if c, ok := a.chats[chatID]; ok && c.ChatType != "private" {
				row.GroupMessages += n
			} else {
				row.PrivateMessages += n
			}
		}
		out.DailyMessageStats = append(out.DailyMessageStats, row)
	}
	sort.Slice(out.DailyMessageStats, func(i, j int) bool {
		return out.DailyMessageStats[i].Date < out.DailyMessageStats[j].Date
	})

	for h, n := range a.hourly {
		if n > 0 {
			out.HourlyMessageStats = append(out.HourlyMessageStats, models.HourlyMessageStats{
				Hour:          h,
				TotalMessages: n,
			})
		}
	}

	out.WeekdayMessageStats = make([]models.WeekdayMessageStats, 0, 7)
	for wd := 0; wd < 7; wd++ {
		acc := a.weekday[wd]
		out.WeekdayMessageStats = append(out.WeekdayMessageStats, models.WeekdayMessageStats{
			Weekday:       wd,
			WeekdayName:   weekdayNames[wd],
			TotalMessages: acc.total,
			UniqueUsers:   len(acc.users),
			UniqueChats:   len(acc.chats),
		})
	}

	out.MessageTypeSummary = make([]models.MessageTypeSummary, 0, len(a.msgTypes))
	for msgType, n := range a.msgTypes {
		out.MessageTypeSummary = append(out.MessageTypeSummary, models.MessageTypeSummary{
			MessageType: msgType,
			TotalCount:  n,
		})
	}
	sort.Slice(out.MessageTypeSummary, func(i, j int) bool {
		return out.MessageTypeSummary[i].MessageType < out.MessageTypeSummary[j].MessageType
	})

	avgPrice := 0.0
	if a.countPriceAll > 0 {
		avgPrice = a.sumPriceAll / float64(a.countPriceAll)
	}
	out.MarketplaceStatistics = models.MarketplaceStatistics{
		TotalItems:     a.totalItems,
		ActiveItems:    a.activeItems,
		SoldItems:      a.soldItems,
		CancelledItems: a.cancelledItems,
		TotalRevenue:   round2(a.totalRevenue),
		AveragePrice:   round2(avgPrice),
		TopSellers:     a.topSellers(),
	}

	out.SellerStatistics = make([]models.SellerStatistics, 0, len(a.sellers))
	for id, acc := range a.sellers {
		avgListing := 0.0
		if acc.countListPrice > 0 {
			avgListing = acc.sumListPrice / float64(acc.countListPrice)
		}
		out.SellerStatistics = append(out.SellerStatistics, models.SellerStatistics{
			SellerID:         id,
			Username:         a.usernameFor(id),
			TotalItemsListed: acc.listed,
			ActiveItems:      acc.active,
			SoldItems:        acc.sold,
			AvgListingPrice:  round2(avgListing),
			TotalListedValue: round2(acc.sumListPrice),
			TotalSoldValue:   round2(acc.sumSoldValue),
		})
	}
	sort.Slice(out.SellerStatistics, func(i, j int) bool {
		return out.SellerStatistics[i].SellerID < out.SellerStatistics[j].SellerID
	})

	out.CategoryStatistics = make([]models.CategoryStatistics, 0, len(a.cats))
	for id, acc := range a.cats {
		avg := 0.0
		if acc.pricedCount > 0 {
			avg = acc.sumPrice / float64(acc.pricedCount)
		}
		out.CategoryStatistics = append(out.CategoryStatistics, models.CategoryStatistics{
			CategoryID:     id,
			CategoryName:   a.catNames[id],
			TotalItems:     acc.total,
			ActiveItems:    acc.active,
			SoldItems:      acc.sold,
			CancelledItems: acc.cancelled,
			AvgPrice:       round2(avg),
		})
	}
	sort.Slice(out.CategoryStatistics, func(i, j int) bool {
		return out.CategoryStatistics[i].CategoryID < out.CategoryStatistics[j].CategoryID
	})

	out.ChatMarketplaceStats = make([]models.ChatMarketplaceStats, 0, len(a.chatMkt))
	for id, acc := range a.chatMkt {
		out.ChatMarketplaceStats = append(out.ChatMarketplaceStats, models.ChatMarketplaceStats{
			ChatID:      id,
			ChatName:    a.chatNameFor(id),
			TotalItems:  acc.total,
			ActiveItems: acc.active,
			SoldItems:   acc.sold,
		})
	}
	sort.Slice(out.ChatMarketplaceStats, func(i, j int) bool {
		return out.ChatMarketplaceStats[i].ChatID < out.ChatMarketplaceStats[j].ChatID
	})

	out.DailyMarketplaceStats = make([]models.DailyMarketplaceStats, 0, len(a.dailyMkt))
	for date, acc := range a.dailyMkt {
		avg := 0.0
		if acc.countListedPrice > 0 {
			avg = acc.sumListedPrice / float64(acc.countListedPrice)
		}
		out.DailyMarketplaceStats = append(out.DailyMarketplaceStats, models.DailyMarketplaceStats{
			Date:            date,
			ItemsListed:     acc.listed,
			ItemsSold:       acc.sold,
			AvgListingPrice: round2(avg),
		})
	}
	sort.Slice(out.DailyMarketplaceStats, func(i, j int) bool {
		return out.DailyMarketplaceStats[i].Date < out.DailyMarketplaceStats[j].Date
	})

	out.SellerCategoryStats = make([]models.SellerCategoryStats, 0, len(a.sellerCats))
	for id, n := range a.sellerCats {
		out.SellerCategoryStats = append(out.SellerCategoryStats, models.SellerCategoryStats{
			CategoryID:   id,
			CategoryName: a.catNames[id],
			SellersCount: n,
		})
	}
	sort.Slice(out.SellerCategoryStats, func(i, j int) bool {
		return out.SellerCategoryStats[i].CategoryID < out.SellerCategoryStats[j].CategoryID
	})

	return out
}

// topSellers ranks sellers by items sold, descending, seller id breaking
// ties, capped at 10.
func (a *Aggregator) topSellers() []models.TopSeller {
	ranked := make([]models.TopSeller, 0, len(a.sellers))
	for id, acc := range a.sellers {
		ranked = append(ranked, models.TopSeller{
			SellerID:     id,
			Username:     a.usernameFor(id),
			ItemsSold:    acc.sold,
			TotalRevenue: round2(acc.sumSoldValue),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ItemsSold != ranked[j].ItemsSold {
			return ranked[i].ItemsSold > ranked[j].ItemsSold
		}
		return ranked[i].SellerID < ranked[j].SellerID
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	return ranked
}
