package store_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"envmon.dev/envmon/internal/store"
)

var _ = Describe("Maintenance recurrence", func() {
	Describe("Recurrence", func() {
		DescribeTable("Valid",
			func(r store.Recurrence, expected bool) {
				Expect(r.Valid()).To(Equal(expected))
			},
			Entry("daily", store.RecurDaily, true),
			Entry("weekly", store.RecurWeekly, true),
			Entry("monthly", store.RecurMonthly, true),
			Entry("yearly", store.RecurYearly, true),
			Entry("empty", store.Recurrence(""), false),
			Entry("unknown", store.Recurrence("fortnightly"), false),
		)

		It("should advance daily by one day", func() {
			after := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
			Expect(store.RecurDaily.Next(after)).
				To(Equal(time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)))
		})

		It("should advance weekly by seven days", func() {
			after := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
			Expect(store.RecurWeekly.Next(after)).
				To(Equal(time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)))
		})

		It("should advance monthly by one calendar month", func() {
			after := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
			Expect(store.RecurMonthly.Next(after)).
				To(Equal(time.Date(2025, 2, 15, 9, 0, 0, 0, time.UTC)))
		})

		It("should advance yearly by one calendar year", func() {
			after := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
			Expect(store.RecurYearly.Next(after)).
				To(Equal(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)))
		})

		It("should keep yearly stable across leap years", func() {
			after := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
			// Go normalizes Feb 29 + 1 year to Mar 1.
			Expect(store.RecurYearly.Next(after)).
				To(Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
		})
	})

	Describe("NextDue", func() {
		It("should be the start date before any completion", func() {
			start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
			schedule := store.MaintenanceSchedule{
				Recurrence: store.RecurYearly,
				StartDate:  start,
			}
			Expect(schedule.NextDue()).To(Equal(start))
		})

		It("should follow the last completion once work was done", func() {
			start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
			done := time.Date(2025, 5, 3, 14, 0, 0, 0, time.UTC)
			schedule := store.MaintenanceSchedule{
				Recurrence:    store.RecurYearly,
				StartDate:     start,
				LastCompleted: &done,
			}
			Expect(schedule.NextDue()).
				To(Equal(time.Date(2026, 5, 3, 14, 0, 0, 0, time.UTC)))
		})
	})
})
