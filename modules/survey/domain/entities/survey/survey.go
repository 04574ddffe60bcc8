package survey

import (
	"strings"
	"time"
)

type Survey struct {
	id        int64
	name      string
	createdAt time.Time
}

func New(name string) Survey {
	return Survey{name: strings.TrimSpace(name)}
}

func Hydrate(id int64, name string, createdAt time.Time) Survey {
	return Survey{id: id, name: strings.TrimSpace(name), createdAt: createdAt}
}

func (s Survey) ID() int64            { return s.id }
func (s Survey) Name() string         { return s.name }
func (s Survey) CreatedAt() time.Time { return s.createdAt }
func (s Survey) IsZero() bool         { return s.id == 0 && s.name == "" }
