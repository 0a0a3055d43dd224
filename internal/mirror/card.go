package mirror

import (
	"bytes"
	"fmt"
	"html/template"
)

// Kind identifies one of the closed set of card variants
type Kind string

const (
	KindProgress Kind = "progress"
	KindGoal     Kind = "goal"
	KindBattery  Kind = "battery"
)

// Card is a typed notification payload. The closed set of variants is
// ProgressCard, GoalCard and BatteryCard; rendering happens once, at the
// dispatch boundary.
type Card interface {
	Kind() Kind
}

// Totals holds the five activity metrics shown on a card
type Totals struct {
	Steps         int
	Floors        int
	DistanceMiles float64
	CaloriesOut   int
	ActiveMinutes int
}

// ProgressCard shows current stats against the daily goals
type ProgressCard struct {
	Stats Totals
	Goals Totals
}

func (ProgressCard) Kind() Kind { return KindProgress }

// GoalFragment is one "goal reached" line of a composite goal card
type GoalFragment struct {
	Metric   string
	Headline string
}

// GoalCard aggregates all goal crossings detected in one evaluation pass
// into a single composite notification
type GoalCard struct {
	Fragments []GoalFragment
}

func (GoalCard) Kind() Kind { return KindGoal }

// BatteryCard warns that a tracker device battery is low
type BatteryCard struct {
	DeviceVersion string
	Battery       string
}

func (BatteryCard) Kind() Kind { return KindBattery }

var progressTmpl = template.Must(template.New("progress").Parse(`<article>
<section>
<h1 class="text-large">Today so far</h1>
<ul class="text-small">
<li>{{.Stats.Steps}} / {{.Goals.Steps}} steps</li>
<li>{{.Stats.Floors}} / {{.Goals.Floors}} floors</li>
<li>{{printf "%.1f" .Stats.DistanceMiles}} / {{printf "%.1f" .Goals.DistanceMiles}} miles</li>
<li>{{.Stats.CaloriesOut}} / {{.Goals.CaloriesOut}} calories</li>
<li>{{.Stats.ActiveMinutes}} / {{.Goals.ActiveMinutes}} active minutes</li>
</ul>
</section>
</article>`))

var goalTmpl = template.Must(template.New("goal").Parse(`<article>
<section>
<h1 class="text-large">Goal reached!</h1>
<ul class="text-small">
{{range .Fragments}}<li>{{.Headline}}</li>
{{end}}</ul>
</section>
</article>`))

var batteryTmpl = template.Must(template.New("battery").Parse(`<article>
<section>
<h1 class="text-large">Charge your {{.DeviceVersion}}</h1>
<p class="text-small">Tracker battery is {{.Battery}}</p>
</section>
</article>`))

// TimelineItem is the rendered wire form of a card
type TimelineItem struct {
	HTML         string            `json:"html"`
	Notification *NotificationConf `json:"notification,omitempty"`
	MenuItems    []MenuItem        `json:"menuItems,omitempty"`
}

// NotificationConf controls how the display announces the card
type NotificationConf struct {
	Level string `json:"level"`
}

// MenuItem is one action attached to a card
type MenuItem struct {
	Action string `json:"action"`
}

// Render renders a card into its timeline wire form
func Render(card Card) (*TimelineItem, error) {
	var tmpl *template.Template
	switch card.(type) {
	case ProgressCard, *ProgressCard:
		tmpl = progressTmpl
	case GoalCard, *GoalCard:
		tmpl = goalTmpl
	case BatteryCard, *BatteryCard:
		tmpl = batteryTmpl
	default:
		return nil, fmt.Errorf("unknown card variant %T", card)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, card); err != nil {
		return nil, fmt.Errorf("failed to render %s card: %w", card.Kind(), err)
	}

	item := &TimelineItem{
		HTML:         buf.String(),
		Notification: &NotificationConf{Level: "DEFAULT"},
		MenuItems: []MenuItem{
			{Action: "TOGGLE_PINNED"},
			{Action: "DELETE"},
		},
	}
	return item, nil
}
