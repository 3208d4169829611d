package checkpoint

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/bobonovski/lltm/corpus"
	"github.com/bobonovski/lltm/matrix"
	"github.com/bobonovski/lltm/model"
	"github.com/bobonovski/lltm/util"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func labelHeader(first []string, labels model.LabelSpace) []string {
	header := append([]string(nil), first...)
	for k := uint32(0); k < labels.Size(); k += 1 {
		header = append(header, labels.Name(k))
	}
	return header
}

// WriteTheta writes one row per document: its id, its rating (empty
// when unrated) and the label mixture
func WriteTheta(w io.Writer, m *model.Model) error {
	out := csv.NewWriter(w)
	if err := out.Write(labelHeader([]string{"doc", "rating"}, m.Labels)); err != nil {
		return err
	}

	theta := m.Theta()
	for d, doc := range m.Data.Docs {
		rating := ""
		if doc.HasRating {
			rating = formatFloat(doc.Rating)
		}
		record := []string{strconv.FormatUint(uint64(doc.Id), 10), rating}
		for _, v := range theta.Row(uint32(d)) {
			record = append(record, formatFloat(v))
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// WriteItemMatrix writes an item x label matrix such as phi or beta,
// one row per item
func WriteItemMatrix(w io.Writer, labels model.LabelSpace, mat *matrix.Float64Matrix) error {
	out := csv.NewWriter(w)
	if err := out.Write(labelHeader([]string{"item"}, labels)); err != nil {
		return err
	}

	rows, _ := mat.Shape()
	for v := uint32(0); v < rows; v += 1 {
		record := []string{strconv.FormatUint(uint64(v), 10)}
		for _, x := range mat.Row(v) {
			record = append(record, formatFloat(x))
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}

// WriteTopItems writes the n most probable items of every label. vocab
// maps word ids to tokens, the token column stays empty without one.
func WriteTopItems(w io.Writer, m *model.Model, n int, vocab []string) error {
	out := csv.NewWriter(w)
	if err := out.Write([]string{"label", "rank", "item", "token", "phi"}); err != nil {
		return err
	}

	phi := m.Phi()
	for k := uint32(0); k < m.Labels.Size(); k += 1 {
		col := phi.Col(k)
		for rank, item := range util.TopN(col, n) {
			token := ""
			if m.Stream == corpus.Words && item < len(vocab) {
				token = vocab[item]
			}
			record := []string{
				m.Labels.Name(k),
				strconv.Itoa(rank + 1),
				strconv.Itoa(item),
				token,
				formatFloat(col[item]),
			}
			if err := out.Write(record); err != nil {
				return err
			}
		}
	}
	out.Flush()
	return out.Error()
}
