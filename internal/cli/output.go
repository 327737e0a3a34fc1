package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// JSONMode возвращает true, если данные выводятся в JSON.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Text выводит текст в stdout как есть.
func (o *Output) Text(s string) {
	fmt.Fprintln(o.w, s)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Warn выводит предупреждение в stderr.
func (o *Output) Warn(msg string) {
	fmt.Fprintln(o.errW, "Warning: "+msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Summary выводит итог запуска: заголовок, таблицу узлов в порядке добавления
// и финальный контекст. В JSON режиме выводит ExecutionResult целиком.
func (o *Output) Summary(result *domain.ExecutionResult) {
	if o.jsonMode {
		o.JSON(result)
		return
	}

	fmt.Fprintf(o.w, "Pipeline: %s\n", result.Pipeline)
	fmt.Fprintf(o.w, "Run:      %s\n", result.RunID)
	fmt.Fprintf(o.w, "Status:   %s\n", result.Status)
	fmt.Fprintf(o.w, "Total:    %s\n", formatDuration(result.TotalTime))
	if result.Error != "" {
		fmt.Fprintf(o.w, "Error:    %s\n", result.Error)
	}
	fmt.Fprintln(o.w)

	nodes := result.OrderedNodes()
	rows := make([][]string, len(nodes))
	for i, n := range nodes {
		elapsed := "-"
		if n.Status.IsTerminal() {
			elapsed = formatDuration(n.ExecutionTime)
		}
		rows[i] = []string{n.Name, n.Status.String(), elapsed, n.Error}
	}
	o.Table([]string{"NODE", "STATUS", "TIME", "ERROR"}, rows)

	if len(result.FinalContext) == 0 {
		return
	}

	fmt.Fprintln(o.w)
	keys := make([]string, 0, len(result.FinalContext))
	for k := range result.FinalContext {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	ctxRows := make([][]string, len(keys))
	for i, k := range keys {
		ctxRows[i] = []string{k, formatValue(result.FinalContext[k])}
	}
	o.Table([]string{"KEY", "VALUE"}, ctxRows)
}

// formatDuration округляет длительность для таблиц.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.String()
	}
}

// formatValue выводит скаляры как есть, составные значения как JSON.
func formatValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
