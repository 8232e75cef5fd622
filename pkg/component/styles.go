package component

import (
	"sort"
	"strings"
	"sync"
)

// StyleID names the component stylesheet in the registry.
const StyleID = "apex-chart-styles"

const componentCSS = `.apex-chart-container {
  position: relative;
  width: 100%;
  min-height: 200px;
}
.apex-chart-loading {
  position: absolute;
  inset: 0;
  display: flex;
  align-items: center;
  justify-content: center;
  background: rgba(255, 255, 255, 0.7);
  z-index: 10;
}
.apex-chart-error {
  padding: 16px;
  color: #c0392b;
  font-size: 14px;
  text-align: center;
}
.apex-chart-container[data-theme="dark"] {
  background: #1e1e1e;
  color: #e0e0e0;
}
.apex-chart-container[data-theme="dark"] .apex-chart-loading {
  background: rgba(30, 30, 30, 0.7);
}
`

// StyleSheet is a process-wide set of named stylesheets.
type StyleSheet struct {
	mu     sync.Mutex
	sheets map[string]string
}

var (
	globalStyles = &StyleSheet{sheets: map[string]string{}}
	stylesOnce   sync.Once
)

// Install adds css under id unless id is already present. It reports whether
// css was added.
func (s *StyleSheet) Install(id, css string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sheets[id]; ok {
		return false
	}
	s.sheets[id] = css
	return true
}

func (s *StyleSheet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sheets[id]
	return ok
}

// CSS concatenates all sheets ordered by id.
func (s *StyleSheet) CSS() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sheets))
	for id := range s.sheets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(s.sheets[id])
	}
	return b.String()
}

// RegisterStyles installs the component stylesheet once per process and
// returns the registry.
func RegisterStyles() *StyleSheet {
	stylesOnce.Do(func() {
		if !globalStyles.Has(StyleID) {
			globalStyles.Install(StyleID, componentCSS)
		}
	})
	return globalStyles
}
