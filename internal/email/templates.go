package email

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strconv"
	texttemplate "text/template"
	"time"
)

type Recipient struct {
	Email    string
	Name     string
	Timezone *time.Location
}

// SlotChange describes one change of a trip for the notification email.
type SlotChange struct {
	GroupID   int64
	GroupName string
	SlotID    int64
	Datetime  time.Time
	Change    string
	ActorName string
	Children  int
	Capacity  int
}

type DigestTrip struct {
	Datetime time.Time
	Children int
	Capacity int
	IsDriver bool
}

type WeeklyDigest struct {
	GroupID   int64
	GroupName string
	WeekStart time.Time
	Trips     []DigestTrip
}

type Invitation struct {
	GroupID     int64
	GroupName   string
	InviterName string
}

type rendered struct {
	Subject string
	HTML    string
	Text    string
}

type messages struct {
	Greeting      string
	SlotSubject   string
	SlotIntro     string
	DigestSubject string
	DigestIntro   string
	DigestEmpty   string
	InviteSubject string
	InviteIntro   string
	Open          string
	Driver        string
	Seats         string
	Footer        string
	Changes       map[string]string
}

var catalog = map[string]messages{
	"en": {
		Greeting:      "Hi %s,",
		SlotSubject:   "Trip update in %s",
		SlotIntro:     "%s changed the trip on %s:",
		DigestSubject: "Your trips for the week of %s",
		DigestIntro:   "Here is the schedule of %s for the week of %s.",
		DigestEmpty:   "No trips are planned this week.",
		InviteSubject: "%s invited you to %s",
		InviteIntro:   "%s invited your family to join the carpool group %s.",
		Open:          "Open schedule",
		Driver:        "you drive",
		Seats:         "%d/%d seats taken",
		Footer:        "This is an automated message. Please do not reply.",
		Changes: map[string]string{
			"SLOT_CREATED":            "trip created",
			"VEHICLE_ASSIGNED":        "vehicle added",
			"VEHICLE_REMOVED":         "vehicle removed",
			"CHILD_ASSIGNED":          "child added",
			"CHILD_REMOVED":           "child removed",
			"DRIVER_ASSIGNED":         "driver assigned",
			"SEAT_OVERRIDE_UPDATED":   "seats changed",
			"SCHEDULE_CONFIG_UPDATED": "schedule times changed",
		},
	},
	"fr": {
		Greeting:      "Bonjour %s,",
		SlotSubject:   "Trajet modifié dans %s",
		SlotIntro:     "%s a modifié le trajet du %s :",
		DigestSubject: "Vos trajets de la semaine du %s",
		DigestIntro:   "Voici le planning de %s pour la semaine du %s.",
		DigestEmpty:   "Aucun trajet prévu cette semaine.",
		InviteSubject: "%s vous invite dans %s",
		InviteIntro:   "%s invite votre famille à rejoindre le groupe %s.",
		Open:          "Voir le planning",
		Driver:        "vous conduisez",
		Seats:         "%d/%d places occupées",
		Footer:        "Message automatique, merci de ne pas répondre.",
		Changes: map[string]string{
			"SLOT_CREATED":            "trajet créé",
			"VEHICLE_ASSIGNED":        "véhicule ajouté",
			"VEHICLE_REMOVED":         "véhicule retiré",
			"CHILD_ASSIGNED":          "enfant ajouté",
			"CHILD_REMOVED":           "enfant retiré",
			"DRIVER_ASSIGNED":         "conducteur désigné",
			"SEAT_OVERRIDE_UPDATED":   "places modifiées",
			"SCHEDULE_CONFIG_UPDATED": "horaires modifiés",
		},
	},
	"de": {
		Greeting:      "Hallo %s,",
		SlotSubject:   "Fahrt in %s geändert",
		SlotIntro:     "%s hat die Fahrt am %s geändert:",
		DigestSubject: "Ihre Fahrten in der Woche vom %s",
		DigestIntro:   "Hier ist der Plan von %s für die Woche vom %s.",
		DigestEmpty:   "Diese Woche sind keine Fahrten geplant.",
		InviteSubject: "%s hat Sie zu %s eingeladen",
		InviteIntro:   "%s hat Ihre Familie in die Fahrgemeinschaft %s eingeladen.",
		Open:          "Plan öffnen",
		Driver:        "Sie fahren",
		Seats:         "%d/%d Plätze belegt",
		Footer:        "Automatische Nachricht, bitte nicht antworten.",
		Changes: map[string]string{
			"SLOT_CREATED":            "Fahrt erstellt",
			"VEHICLE_ASSIGNED":        "Fahrzeug hinzugefügt",
			"VEHICLE_REMOVED":         "Fahrzeug entfernt",
			"CHILD_ASSIGNED":          "Kind hinzugefügt",
			"CHILD_REMOVED":           "Kind entfernt",
			"DRIVER_ASSIGNED":         "Fahrer zugewiesen",
			"SEAT_OVERRIDE_UPDATED":   "Plätze geändert",
			"SCHEDULE_CONFIG_UPDATED": "Zeiten geändert",
		},
	},
	"es": {
		Greeting:      "Hola %s,",
		SlotSubject:   "Viaje actualizado en %s",
		SlotIntro:     "%s cambió el viaje del %s:",
		DigestSubject: "Tus viajes de la semana del %s",
		DigestIntro:   "Este es el horario de %s para la semana del %s.",
		DigestEmpty:   "No hay viajes esta semana.",
		InviteSubject: "%s te invitó a %s",
		InviteIntro:   "%s invitó a tu familia al grupo %s.",
		Open:          "Ver horario",
		Driver:        "conduces tú",
		Seats:         "%d/%d plazas ocupadas",
		Footer:        "Mensaje automático, por favor no respondas.",
		Changes: map[string]string{
			"SLOT_CREATED":            "viaje creado",
			"VEHICLE_ASSIGNED":        "vehículo añadido",
			"VEHICLE_REMOVED":         "vehículo retirado",
			"CHILD_ASSIGNED":          "niño añadido",
			"CHILD_REMOVED":           "niño retirado",
			"DRIVER_ASSIGNED":         "conductor asignado",
			"SEAT_OVERRIDE_UPDATED":   "plazas cambiadas",
			"SCHEDULE_CONFIG_UPDATED": "horarios cambiados",
		},
	},
}

func messagesFor(locale string) messages {
	if m, ok := catalog[locale]; ok {
		return m
	}
	return catalog[defaultLocale]
}

// view - данные для шаблонов писем
type view struct {
	Greeting string
	Intro    string
	Lines    []string
	Link     string
	Open     string
	Footer   string
}

var htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<p>{{.Greeting}}</p>
		<p>{{.Intro}}</p>
		{{if .Lines}}<ul>{{range .Lines}}<li>{{.}}</li>{{end}}</ul>{{end}}
		{{if .Link}}<p><a href="{{.Link}}">{{.Open}}</a></p>{{end}}
		<p style="font-size: 12px; color: #666;">{{.Footer}}</p>
	</div>
</body>
</html>
`))

var textTmpl = texttemplate.Must(texttemplate.New("text").Parse(`{{.Greeting}}

{{.Intro}}
{{range .Lines}}
- {{.}}{{end}}
{{if .Link}}
{{.Open}}: {{.Link}}
{{end}}
---
{{.Footer}}
`))

func render(subject string, v view) (*rendered, error) {
	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, v); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := textTmpl.Execute(&text, v); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	return &rendered{Subject: subject, HTML: html.String(), Text: text.String()}, nil
}

func localTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Mon 02.01 15:04")
}

func (s *Service) groupLink(groupID int64, query url.Values) string {
	link, err := s.links.DeepLink(PlatformWeb, "/groups/"+strconv.FormatInt(groupID, 10)+"/schedule", query)
	if err != nil {
		return ""
	}
	return link
}

func (s *Service) renderSlotChange(to Recipient, c SlotChange) (*rendered, error) {
	m := messagesFor(LocaleFor(to.Email))
	change := m.Changes[c.Change]
	if change == "" {
		change = c.Change
	}

	lines := []string{change}
	if c.Capacity > 0 {
		lines = append(lines, fmt.Sprintf(m.Seats, c.Children, c.Capacity))
	}

	query := url.Values{"slot": {strconv.FormatInt(c.SlotID, 10)}}
	return render(fmt.Sprintf(m.SlotSubject, c.GroupName), view{
		Greeting: fmt.Sprintf(m.Greeting, to.Name),
		Intro:    fmt.Sprintf(m.SlotIntro, c.ActorName, localTime(c.Datetime, to.Timezone)),
		Lines:    lines,
		Link:     s.groupLink(c.GroupID, query),
		Open:     m.Open,
		Footer:   m.Footer,
	})
}

func (s *Service) renderDigest(to Recipient, d WeeklyDigest) (*rendered, error) {
	m := messagesFor(LocaleFor(to.Email))
	week := d.WeekStart.Format("02.01.2006")

	lines := make([]string, 0, len(d.Trips))
	for _, trip := range d.Trips {
		line := localTime(trip.Datetime, to.Timezone) + " - " + fmt.Sprintf(m.Seats, trip.Children, trip.Capacity)
		if trip.IsDriver {
			line += " (" + m.Driver + ")"
		}
		lines = append(lines, line)
	}
	intro := fmt.Sprintf(m.DigestIntro, d.GroupName, week)
	if len(lines) == 0 {
		intro += " " + m.DigestEmpty
	}

	return render(fmt.Sprintf(m.DigestSubject, week), view{
		Greeting: fmt.Sprintf(m.Greeting, to.Name),
		Intro:    intro,
		Lines:    lines,
		Link:     s.groupLink(d.GroupID, nil),
		Open:     m.Open,
		Footer:   m.Footer,
	})
}

func (s *Service) renderInvitation(to Recipient, inv Invitation) (*rendered, error) {
	m := messagesFor(LocaleFor(to.Email))
	return render(fmt.Sprintf(m.InviteSubject, inv.InviterName, inv.GroupName), view{
		Greeting: fmt.Sprintf(m.Greeting, to.Name),
		Intro:    fmt.Sprintf(m.InviteIntro, inv.InviterName, inv.GroupName),
		Link:     s.groupLink(inv.GroupID, nil),
		Open:     m.Open,
		Footer:   m.Footer,
	})
}

// SendSlotChange уведомляет участника группы об изменении поездки
func (s *Service) SendSlotChange(ctx context.Context, to Recipient, c SlotChange) error {
	msg, err := s.renderSlotChange(to, c)
	if err != nil {
		return err
	}
	return s.send(ctx, to.Email, msg)
}

// SendWeeklyDigest отправляет расписание группы на неделю
func (s *Service) SendWeeklyDigest(ctx context.Context, to Recipient, d WeeklyDigest) error {
	msg, err := s.renderDigest(to, d)
	if err != nil {
		return err
	}
	return s.send(ctx, to.Email, msg)
}

// SendGroupInvitation сообщает семье, что её добавили в группу
func (s *Service) SendGroupInvitation(ctx context.Context, to Recipient, inv Invitation) error {
	msg, err := s.renderInvitation(to, inv)
	if err != nil {
		return err
	}
	return s.send(ctx, to.Email, msg)
}
