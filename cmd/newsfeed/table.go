package main

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// widthCond ширина кириллицы всегда 1, независимо от локали терминала
var widthCond = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// writeTable выравнивает колонки по ширине отображения
func writeTable(w io.Writer, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	colCount := 0
	for _, row := range rows {
		colCount = max(colCount, len(row))
	}

	widths := make([]int, colCount)
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], widthCond.StringWidth(cell))
		}
	}

	for _, row := range rows {
		var sb strings.Builder
		for i := 0; i < colCount; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i == colCount-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(widthCond.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		_, _ = io.WriteString(w, strings.TrimRight(sb.String(), " ")+"\n")
	}
}

func truncateWidth(s string, width int) string {
	return widthCond.Truncate(s, width, "…")
}
