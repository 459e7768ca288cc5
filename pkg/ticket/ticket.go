// Package ticket renders printable booking tickets.
package ticket

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/swiftbus/booking-backend/internal/models"
)

// Render produces the confirmed-booking ticket PDF. One page per booking,
// all passengers listed; the order reference is what gate scanners look up.
func Render(booking *models.Booking, trip *models.Trip) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Bus Ticket", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BUS TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, booking.Reference)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Route      : %s", trip.RouteName),
		fmt.Sprintf("From / To  : %s -> %s", trip.Origin, trip.Destination),
		fmt.Sprintf("Departure  : %s", trip.DepartureAt.Format("Mon, 02 Jan 2006 15:04")),
		fmt.Sprintf("Service    : %s", trip.ServiceType),
		fmt.Sprintf("Seats      : %s", strings.Join(booking.Seats, ", ")),
		fmt.Sprintf("Contact    : %s (%s)", booking.ContactName, booking.ContactPhone),
		fmt.Sprintf("Total      : %.2f", booking.TotalPrice),
	}
	if len(booking.ReturnSeats) > 0 {
		lines = append(lines, fmt.Sprintf("Return seats: %s", strings.Join(booking.ReturnSeats, ", ")))
	}
	for _, line := range lines {
		pdf.Cell(0, 7, line)
		pdf.Ln(7)
	}

	if len(booking.Passengers) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Passengers")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		for _, p := range booking.Passengers {
			leg := "outbound"
			if p.ReturnLeg {
				leg = "return"
			}
			pdf.Cell(0, 6, fmt.Sprintf("%s %s - seat %s (%s)", p.Title, p.Name, p.SeatID, leg))
			pdf.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render ticket: %w", err)
	}
	return buf.Bytes(), nil
}
