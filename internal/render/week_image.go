// Package render draws a group's week of trips as a PNG.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/Freeeeeet/schoolrun/internal/service"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Размеры и отступы
const (
	imageWidth       = 1120
	imageHeight      = 720
	headerHeight     = 70
	leftLabelsWidth  = 60
	legendWidth      = 130
	dayPaddingX      = 6
	tripBlockMinutes = 30
	slotBorderRadius = 5.0
	shadowOffset     = 2.0
	totalDaysInWeek  = 7
	hourPaddingTop   = 1
	hourPaddingBot   = 1
	defaultMinHour   = 7
	defaultMaxHour   = 17
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 255}
	hourLabelColor   = color.RGBA{110, 115, 120, 255}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 90}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{228, 228, 228, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	tripEmptyColor   = color.RGBA{133, 193, 85, 230}
	tripPartialColor = color.RGBA{255, 205, 110, 240}
	tripFullColor    = color.RGBA{255, 160, 170, 255}
	tripTextColor    = color.RGBA{20, 24, 28, 240}
	tripShadowColor  = color.RGBA{0, 0, 0, 25}
)

// WeekInput is everything the week image needs.
type WeekInput struct {
	Title     string
	WeekStart time.Time // UTC instant of local Monday 00:00
	Location  *time.Location
	Slots     []*service.SlotDetails
	Now       time.Time
}

type hourRange struct {
	start int
	end   int
	total int
}

// WeekImage рисует неделю поездок группы в PNG
func WeekImage(in WeekInput) ([]byte, error) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	monday := in.WeekStart.In(loc)
	today := normalizeToDay(in.Now.In(loc))

	slotsByDay := groupSlotsByDay(in.Slots, loc)
	hours := calculateHourRange(in.Slots, loc)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / totalDaysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, in.Title, monday)
	drawHourLabels(dc, hours, cellHeight)

	todayShown := false
	for dayIndex := 0; dayIndex < totalDaysInWeek; dayIndex++ {
		date := monday.AddDate(0, 0, dayIndex)
		x := float64(leftLabelsWidth + dayIndex*dayWidth)
		isToday := isSameDay(date, today)
		todayShown = todayShown || isToday

		drawDayBackground(dc, x, dayWidth, dayHeight, dayIndex, isToday)
		drawDayHeader(dc, date, x, dayWidth)
		drawHourLines(dc, x, dayWidth, hours, cellHeight)
		for _, slot := range slotsByDay[date.Format("2006-01-02")] {
			drawTrip(dc, slot, loc, x, dayWidth, hours, cellHeight)
		}
	}

	if todayShown {
		drawCurrentTimeLine(dc, in.Now.In(loc), hours, cellHeight, dayWidth)
	}
	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isSameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// groupSlotsByDay группирует поездки по локальной дате
func groupSlotsByDay(slots []*service.SlotDetails, loc *time.Location) map[string][]*service.SlotDetails {
	byDay := make(map[string][]*service.SlotDetails)
	for _, slot := range slots {
		key := slot.Datetime.In(loc).Format("2006-01-02")
		byDay[key] = append(byDay[key], slot)
	}
	return byDay
}

// calculateHourRange определяет диапазон часов по локальному времени поездок
func calculateHourRange(slots []*service.SlotDetails, loc *time.Location) hourRange {
	minHour, maxHour := 24, 0
	for _, slot := range slots {
		local := slot.Datetime.In(loc)
		end := local.Add(tripBlockMinutes * time.Minute)
		endHour := end.Hour()
		if end.Minute() > 0 || end.Day() != local.Day() {
			endHour++
		}
		if end.Day() != local.Day() {
			endHour = 24
		}
		minHour = min(minHour, local.Hour())
		maxHour = max(maxHour, endHour)
	}

	if minHour == 24 {
		minHour, maxHour = defaultMinHour, defaultMaxHour
	}

	start := max(minHour-hourPaddingTop, 0)
	end := min(maxHour+hourPaddingBot, 24)
	return hourRange{start: start, end: end, total: end - start}
}

func drawHeader(dc *gg.Context, title string, monday time.Time) {
	sunday := monday.AddDate(0, 0, 6)
	dc.SetColor(textColor)
	dc.DrawString(title, 12, 22)
	dc.DrawString(fmt.Sprintf("%s - %s", monday.Format("02 Jan"), sunday.Format("02 Jan 2006")), 12, 40)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	dc.SetColor(hourLabelColor)
	for i := 0; i <= hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hours.start+i), float64(leftLabelsWidth)-8, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x float64, dayWidth, dayHeight, dayIndex int, isToday bool) {
	switch {
	case isToday:
		dc.SetColor(todayBgColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, headerHeight, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, date time.Time, x float64, dayWidth int) {
	dc.SetColor(textColor)
	cx := x + float64(dayWidth)/2
	dc.DrawStringAnchored(date.Format("Mon"), cx, headerHeight-22, 0.5, 0.5)
	dc.DrawStringAnchored(date.Format("02.01"), cx, headerHeight-8, 0.5, 0.5)
}

func drawHourLines(dc *gg.Context, x float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)
	for i := 0; i <= hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawLine(x, y, x+float64(dayWidth), y)
		dc.Stroke()
	}
}

// drawTrip рисует одну поездку: время, занятость мест и число машин
func drawTrip(dc *gg.Context, slot *service.SlotDetails, loc *time.Location, x float64, dayWidth int, hours hourRange, cellHeight float64) {
	local := slot.Datetime.In(loc)
	startHour := float64(local.Hour()) + float64(local.Minute())/60
	y := float64(headerHeight) + (startHour-float64(hours.start))*cellHeight
	height := max(float64(tripBlockMinutes)/60*cellHeight, 30)
	width := float64(dayWidth - dayPaddingX*2)

	fill := tripColor(slot)

	dc.SetColor(tripShadowColor)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, y+1+shadowOffset, width, height-2, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x+dayPaddingX, y+1, width, height-2, slotBorderRadius)
	dc.Fill()

	dc.SetColor(darkenColor(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+dayPaddingX, y+1, width, height-2, slotBorderRadius)
	dc.Stroke()

	dc.SetColor(tripTextColor)
	txtX := x + dayPaddingX + 5
	dc.DrawString(fmt.Sprintf("%s %s", local.Format("15:04"), seatsLabel(slot)), txtX, y+14)
	dc.DrawString(fmt.Sprintf("%d car(s)", len(slot.Vehicles)), txtX, y+27)
}

func seatsLabel(slot *service.SlotDetails) string {
	if len(slot.Vehicles) == 0 {
		return fmt.Sprintf("%d kids", slot.ChildCount)
	}
	return fmt.Sprintf("%d/%d", slot.ChildCount, slot.TotalCapacity)
}

func tripColor(slot *service.SlotDetails) color.RGBA {
	switch {
	case slot.ChildCount == 0:
		return tripEmptyColor
	case slot.AvailableSeats <= 0:
		return tripFullColor
	default:
		return tripPartialColor
	}
}

func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

func drawCurrentTimeLine(dc *gg.Context, now time.Time, hours hourRange, cellHeight float64, dayWidth int) {
	current := float64(now.Hour()) + float64(now.Minute())/60
	if current < float64(hours.start) || current > float64(hours.end) {
		return
	}
	y := float64(headerHeight) + (current-float64(hours.start))*cellHeight
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2)
	dc.DrawLine(leftLabelsWidth, y, float64(leftLabelsWidth+totalDaysInWeek*dayWidth), y)
	dc.Stroke()
}

func drawLegend(dc *gg.Context, dayWidth int) {
	x := float64(leftLabelsWidth + totalDaysInWeek*dayWidth + 12)
	y := float64(imageHeight) - 100

	items := []struct {
		label string
		clr   color.Color
	}{
		{"No children", tripEmptyColor},
		{"Seats left", tripPartialColor},
		{"Full", tripFullColor},
	}

	const boxW, boxH = 18.0, 12.0
	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(x, y, boxW, boxH, 3)
		dc.Fill()

		dc.SetColor(textColor)
		dc.DrawStringAnchored(item.label, x+boxW+6, y+boxH/2, 0, 0.35)
		y += boxH + 12
	}
}
