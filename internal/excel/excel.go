package excel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/derekprior/leaguesched/internal/domain"
	"github.com/derekprior/leaguesched/internal/schedule"
)

const (
	MasterSheet   = "Master Schedule"
	UnplacedSheet = "Unplaced"
	SummarySheet  = "Summary"

	// DateFormat is how dates are written on every sheet.
	DateFormat = "01/02/2006"
)

// Generate creates a workbook with the master schedule, a sheet per team,
// the unplaced pairings and per-team totals.
func Generate(season domain.Season, teams []domain.Team, fields []domain.Field, result *schedule.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	// Set default font for the workbook
	f.SetDefaultFont("Arial")

	if err := writeMasterSheet(f, fields, result); err != nil {
		return nil, fmt.Errorf("writing master sheet: %w", err)
	}

	if err := writeTeamSheets(f, teams, fields, result); err != nil {
		return nil, fmt.Errorf("writing team sheets: %w", err)
	}

	if err := writeUnplacedSheet(f, result); err != nil {
		return nil, fmt.Errorf("writing unplaced sheet: %w", err)
	}

	if err := writeSummarySheet(f, season, teams, result); err != nil {
		return nil, fmt.Errorf("writing summary sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")
	return f, nil
}

// FieldColumnName shortens a field name to its first word when that word is
// unique among all field names.
func FieldColumnName(name string, allNames []string) string {
	first, _, _ := strings.Cut(name, " ")
	count := 0
	for _, n := range allNames {
		if word, _, _ := strings.Cut(n, " "); word == first {
			count++
		}
	}
	if count > 1 {
		return name
	}
	return first
}

// GameLabel is the master-sheet cell text for a game.
func GameLabel(g domain.Game) string {
	return fmt.Sprintf("%s @ %s", g.AwayTeamID, g.HomeTeamID)
}

func blockLabel(b domain.UsageBlock) string {
	label := fmt.Sprintf("%s %s", b.Kind, b.Interval())
	if b.Note != "" {
		label += " " + b.Note
	}
	return label
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 16, Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	return style
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		f.SetCellValue(sheet, cellRef(i+1, 1), h)
	}
	if style := headerStyle(f); style != 0 {
		f.SetCellStyle(sheet, cellRef(1, 1), cellRef(len(headers), 1), style)
	}
}

func writeMasterSheet(f *excelize.File, fields []domain.Field, result *schedule.Result) error {
	sheet := MasterSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	var fieldNames []string
	for _, field := range fields {
		fieldNames = append(fieldNames, field.Name)
	}
	fieldCols := make([]string, len(fieldNames))
	for i, name := range fieldNames {
		fieldCols[i] = FieldColumnName(name, fieldNames)
	}

	// Headers: Date, Day, Time, <field1>, <field2>, ...
	headers := append([]string{"Date", "Day", "Time"}, fieldCols...)
	writeHeaders(f, sheet, headers)

	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	fieldCellStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Size: 16, Family: "Arial"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	fieldIndex := make(map[string]int)
	for i, field := range fields {
		fieldIndex[field.ID] = i
	}

	type rowKey struct {
		date  time.Time
		start domain.TimeOfDay
	}
	cells := make(map[rowKey]map[int]string)
	put := func(k rowKey, col int, text string) {
		if cells[k] == nil {
			cells[k] = make(map[int]string)
		}
		if prev, ok := cells[k][col]; ok {
			text = prev + "; " + text
		}
		cells[k][col] = text
	}

	for _, g := range result.Placed {
		col, ok := fieldIndex[g.FieldID]
		if !ok {
			continue
		}
		put(rowKey{domain.Day(g.Date), g.Start}, col, GameLabel(g))
	}
	// Usage blocks are shown on every round date so gaps read as committed.
	for _, date := range result.RoundDates {
		for i, field := range fields {
			for _, b := range field.BlocksOn(date.Weekday()) {
				put(rowKey{domain.Day(date), b.Start}, i, blockLabel(b))
			}
		}
	}

	rows := make([]rowKey, 0, len(cells))
	for k := range cells {
		rows = append(rows, k)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].date.Equal(rows[j].date) {
			return rows[i].date.Before(rows[j].date)
		}
		return rows[i].start < rows[j].start
	})

	for i, k := range rows {
		row := i + 2
		f.SetCellValue(sheet, cellRef(1, row), k.date.Format(DateFormat))
		f.SetCellValue(sheet, cellRef(2, row), k.date.Format("Mon"))
		f.SetCellValue(sheet, cellRef(3, row), k.start.String())
		for col, text := range cells[k] {
			f.SetCellValue(sheet, cellRef(col+4, row), text)
		}

		if cellStyle != 0 {
			f.SetCellStyle(sheet, cellRef(1, row), cellRef(3, row), cellStyle)
		}
		if fieldCellStyle != 0 && len(fields) > 0 {
			f.SetCellStyle(sheet, cellRef(4, row), cellRef(len(headers), row), fieldCellStyle)
		}
	}

	// Set column widths (sized for Arial 16)
	f.SetColWidth(sheet, "A", "A", 18)
	f.SetColWidth(sheet, "B", "B", 8)
	f.SetColWidth(sheet, "C", "C", 10)
	for i := range fieldNames {
		col := colLetter(i + 4)
		f.SetColWidth(sheet, col, col, 30)
	}

	// Conditional formatting: non-game cells in field columns get light red
	lastRow := len(rows) + 1
	redFill, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFC7CE"}},
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	for i := range fieldNames {
		col := colLetter(i + 4)
		cellRange := fmt.Sprintf("%s2:%s%d", col, col, lastRow)
		topCell := fmt.Sprintf("%s2", col)
		formula := fmt.Sprintf(`AND(%s<>"",ISERROR(FIND(" @ ",%s)))`, topCell, topCell)
		f.SetConditionalFormat(sheet, cellRange, []excelize.ConditionalFormatOptions{
			{
				Type:     "formula",
				Criteria: formula,
				Format:   &redFill,
			},
		})
	}

	return nil
}

// TeamSheetName returns the sheet name for a team, trimmed to Excel's
// 31 character limit.
func TeamSheetName(team domain.Team) string {
	name := team.Name
	if name == "" {
		name = team.ID
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

func writeTeamSheets(f *excelize.File, teams []domain.Team, fields []domain.Field, result *schedule.Result) error {
	fieldNames := make(map[string]string, len(fields))
	for _, field := range fields {
		fieldNames[field.ID] = field.Name
	}
	cellStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Size: 16, Family: "Arial"},
	})
	headers := []string{"Date", "Day", "Time", "Field", "Opponent", "Home/Away", "Round"}

	for _, team := range teams {
		sheet := TeamSheetName(team)
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		writeHeaders(f, sheet, headers)

		row := 2
		for _, g := range result.Placed {
			if !g.Involves(team.ID) {
				continue
			}
			opponent, homeAway := g.AwayTeamID, "Home"
			if g.AwayTeamID == team.ID {
				opponent, homeAway = g.HomeTeamID, "Away"
			}
			field := fieldNames[g.FieldID]
			if field == "" {
				field = "TBD"
			}
			f.SetCellValue(sheet, cellRef(1, row), g.Date.Format(DateFormat))
			f.SetCellValue(sheet, cellRef(2, row), g.Date.Format("Mon"))
			f.SetCellValue(sheet, cellRef(3, row), g.Start.String())
			f.SetCellValue(sheet, cellRef(4, row), field)
			f.SetCellValue(sheet, cellRef(5, row), opponent)
			f.SetCellValue(sheet, cellRef(6, row), homeAway)
			f.SetCellValue(sheet, cellRef(7, row), g.Round)
			if cellStyle != 0 {
				f.SetCellStyle(sheet, cellRef(1, row), cellRef(len(headers), row), cellStyle)
			}
			row++
		}

		// Set column widths (sized for Arial 16)
		widths := map[string]float64{"A": 18, "B": 8, "C": 10, "D": 28, "E": 16, "F": 14, "G": 10}
		for col, w := range widths {
			f.SetColWidth(sheet, col, col, w)
		}
	}
	return nil
}

func writeUnplacedSheet(f *excelize.File, result *schedule.Result) error {
	sheet := UnplacedSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	writeHeaders(f, sheet, []string{"Round", "Date", "Home", "Away", "Reason", "Detail"})
	for i, u := range result.Unplaced {
		row := i + 2
		f.SetCellValue(sheet, cellRef(1, row), u.Pairing.Round)
		f.SetCellValue(sheet, cellRef(2, row), u.Date.Format(DateFormat))
		f.SetCellValue(sheet, cellRef(3, row), u.Pairing.Home.ID)
		f.SetCellValue(sheet, cellRef(4, row), u.Pairing.Away.ID)
		f.SetCellValue(sheet, cellRef(5, row), string(u.Reason))
		f.SetCellValue(sheet, cellRef(6, row), u.Detail)
	}
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 14)
	f.SetColWidth(sheet, "C", "D", 16)
	f.SetColWidth(sheet, "E", "E", 16)
	f.SetColWidth(sheet, "F", "F", 80)
	return nil
}

func writeSummarySheet(f *excelize.File, season domain.Season, teams []domain.Team, result *schedule.Result) error {
	sheet := SummarySheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	f.SetCellValue(sheet, "A1", season.Name)
	f.SetCellValue(sheet, "A2", fmt.Sprintf("%s to %s", season.StartDate.Format(DateFormat), season.EndDate.Format(DateFormat)))
	f.SetCellValue(sheet, "A3", fmt.Sprintf("%d games placed, %d unplaced, %s", len(result.Placed), len(result.Unplaced), result.Outcome))

	headers := []string{"Team", "Games", "Home", "Away", "Unplaced"}
	for i, h := range headers {
		f.SetCellValue(sheet, cellRef(i+1, 5), h)
	}
	if style := headerStyle(f); style != 0 {
		f.SetCellStyle(sheet, cellRef(1, 5), cellRef(len(headers), 5), style)
	}
	for i, team := range teams {
		row := i + 6
		m := result.TeamMetrics[team.ID]
		if m == nil {
			m = &schedule.TeamMetrics{}
		}
		f.SetCellValue(sheet, cellRef(1, row), team.Name)
		f.SetCellValue(sheet, cellRef(2, row), m.Games)
		f.SetCellValue(sheet, cellRef(3, row), m.Home)
		f.SetCellValue(sheet, cellRef(4, row), m.Away)
		f.SetCellValue(sheet, cellRef(5, row), m.Unplaced)
	}
	f.SetColWidth(sheet, "A", "A", 24)
	return nil
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", colLetter(col), row)
}

func colLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
