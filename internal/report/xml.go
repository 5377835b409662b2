package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

type xmlReport struct {
	XMLName   xml.Name `xml:"FuelRates"`
	RunID     string   `xml:"runId,attr,omitempty"`
	Generated string   `xml:"generated,attr"`

	Events      []xmlEvent      `xml:"Events>Event"`
	Stations    []xmlStation    `xml:"Catalog>Station,omitempty"`
	Fuels       []string        `xml:"Catalog>Fuel,omitempty"`
	Diagnostics []xmlDiagnostic `xml:"Diagnostics>Diagnostic,omitempty"`
}

type xmlEvent struct {
	Date    string  `xml:"date,attr"`
	Column  int     `xml:"column,attr"`
	Fuel    string  `xml:"fuel,attr"`
	Start   string  `xml:"start,attr"`
	End     string  `xml:"end,attr"`
	Minutes float64 `xml:"minutes,attr"`
	Volume  float64 `xml:"volume,attr"`
	Rate    float64 `xml:"rate,attr"`
}

type xmlStation struct {
	Name    string      `xml:"name,attr"`
	Columns []xmlColumn `xml:"Column"`
}

type xmlColumn struct {
	ID    int       `xml:"id,attr"`
	Fuels []string  `xml:"Fuel"`
	Hoses []xmlHose `xml:"Hose"`
}

type xmlHose struct {
	Number int      `xml:"number,attr"`
	Fuels  []string `xml:"Fuel"`
}

type xmlDiagnostic struct {
	Rule    string  `xml:"rule,attr"`
	Date    string  `xml:"date,attr"`
	Column  int     `xml:"column,attr"`
	Fuel    string  `xml:"fuel,attr"`
	Value   float64 `xml:"value,attr"`
	Message string  `xml:",chardata"`
}

func renderXML(w io.Writer, data Data) error {
	doc := xmlReport{
		RunID:     data.RunID,
		Generated: data.Generated.UTC().Format(time.RFC3339),
	}
	for _, r := range data.Rows {
		doc.Events = append(doc.Events, xmlEvent{
			Date:    r.Date.String(),
			Column:  r.Column,
			Fuel:    r.Fuel,
			Start:   r.Start.Format(time.RFC3339Nano),
			End:     r.End.Format(time.RFC3339Nano),
			Minutes: r.Duration.Minutes(),
			Volume:  r.Volume,
			Rate:    r.Rate,
		})
	}

	if data.Catalog != nil {
		byStation := make(map[string]int)
		for _, c := range catalogRows(data.Catalog) {
			i, ok := byStation[c.Station]
			if !ok {
				i = len(doc.Stations)
				byStation[c.Station] = i
				doc.Stations = append(doc.Stations, xmlStation{Name: c.Station})
			}
			col := xmlColumn{ID: c.Column, Fuels: c.Fuels}
			for _, h := range c.Hoses {
				col.Hoses = append(col.Hoses, xmlHose{Number: h.Number, Fuels: h.Fuels})
			}
			doc.Stations[i].Columns = append(doc.Stations[i].Columns, col)
		}
		doc.Fuels = data.Catalog.Fuels()
	}

	for _, d := range data.Diagnostics {
		doc.Diagnostics = append(doc.Diagnostics, xmlDiagnostic{
			Rule:    d.Rule,
			Date:    d.Date.String(),
			Column:  d.Column,
			Fuel:    d.Fuel,
			Value:   d.Value,
			Message: d.Message,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode xml: %w", err)
	}
	return enc.Close()
}
