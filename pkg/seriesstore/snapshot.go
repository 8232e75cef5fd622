package seriesstore

// Snapshot is the serializable form of a Store, in insertion order.
type Snapshot struct {
	Series     []Record `json:"series"`
	Categories []string `json:"categories"`
	Colors     []string `json:"colors"`
}

func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Series:     make([]Record, 0, len(s.order)),
		Categories: s.Categories(),
		Colors:     s.Colors(),
	}
	for _, name := range s.order {
		r, _ := s.Series(name)
		if r.Data == nil {
			r.Data = []any{}
		}
		snap.Series = append(snap.Series, r)
	}
	return snap
}

// Restore replaces the store contents with snap. Duplicate series names keep
// the first position and the last record.
func (s *Store) Restore(snap Snapshot) {
	s.Clear()
	for _, r := range snap.Series {
		s.AddSeries(r.Name, r.Color, r.Data)
	}
	s.AddCategories(snap.Categories)
	s.AddColors(snap.Colors)
}
