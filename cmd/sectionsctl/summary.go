package main

import (
	"log"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"sectioncat/internal/sections"
)

// logDistanceSummary prints each detected section's distance with
// locale-aware thousands separators, so a CLI operator skimming a
// hundred-section run can actually parse the numbers.
func logDistanceSummary(secs []sections.FrequentSection) {
	printer := message.NewPrinter(language.English)
	for _, sec := range secs {
		log.Printf("  %s [%s] %v m, visited %d times, confidence %.2f",
			sec.ID, sec.SportType,
			printer.Sprint(number.Decimal(sec.DistanceMeters, number.MaxFractionDigits(0))),
			sec.VisitCount, sec.Confidence)
	}
}
