package carver

import (
	"fmt"
	"io"
	"text/tabwriter"

	"yaffscarve/pkg/core"
	"yaffscarve/pkg/exporter"
)

// Summary 一次扫描的计数
type Summary struct {
	Objects   int
	ByType    map[core.ObjectType]int
	Extracted int
	Excluded  int
	Rejected  int
	Failed    int
	Bytes     int64
}

func NewSummary() *Summary {
	return &Summary{ByType: make(map[core.ObjectType]int)}
}

func (s *Summary) addObject(t core.ObjectType) {
	s.Objects++
	s.ByType[t]++
}

// Print 以表格形式打印
func (s *Summary) Print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Objects:\t%d\n", s.Objects)
	for t := core.TypeUnknown; t <= core.TypeSpecial; t++ {
		if n := s.ByType[t]; n > 0 {
			fmt.Fprintf(tw, "  %s:\t%d\n", t, n)
		}
	}
	fmt.Fprintf(tw, "Extracted:\t%d (%s)\n", s.Extracted, exporter.FormatSize(s.Bytes))
	fmt.Fprintf(tw, "Excluded:\t%d\n", s.Excluded)
	fmt.Fprintf(tw, "Rejected:\t%d\n", s.Rejected)
	fmt.Fprintf(tw, "Failed:\t%d\n", s.Failed)
	tw.Flush()
}
