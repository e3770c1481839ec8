package views

import (
	"fmt"

	"github.com/Ko-stant/tilewall/internal/protocol"
)

func summary(s protocol.StatusSnapshot) string {
	return fmt.Sprintf("extents %s, scale %gx%g, %d screens in %d regions",
		s.Extents.Serialize(), s.XScale, s.YScale, s.Screens, s.Regions)
}

func newestFirst(records []protocol.ErrorRecord) []protocol.ErrorRecord {
	out := make([]protocol.ErrorRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, records[i])
	}
	return out
}
