package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusDeclined  = "declined"
)

// DateLayout is the layout of Task.EventDate and Event.Date.
const DateLayout = "2006-01-02"

type Task struct {
	// Keys
	ID      string `dynamodbav:"id" json:"id"`
	EventID string `dynamodbav:"event_id" json:"event_id"`

	// Business
	Title       string `dynamodbav:"title" json:"title"`
	Description string `dynamodbav:"description" json:"description"`
	EventDate   string `dynamodbav:"event_date" json:"event_date"`
	AssignedTo  string `dynamodbav:"assigned_to" json:"assigned_to"`

	// Lifecycle
	Status      string `dynamodbav:"status" json:"status"`
	ConfirmedAt int64  `dynamodbav:"confirmed_at" json:"confirmed_at"`
	ConfirmedBy string `dynamodbav:"confirmed_by" json:"confirmed_by"`
	DeclinedAt  int64  `dynamodbav:"declined_at" json:"declined_at"`
	DeclinedBy  string `dynamodbav:"declined_by" json:"declined_by"`

	EmailReminders EmailReminders `dynamodbav:"email_reminders" json:"email_reminders"`

	// Timestamps (epoch ms)
	CreatedAt int64 `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt int64 `dynamodbav:"updated_at" json:"updated_at"`
}

// EmailReminders tracks which notifications a task has already produced for
// its current assignee.
type EmailReminders struct {
	AssignmentSent   bool  `dynamodbav:"assignment_sent" json:"assignment_sent"`
	ThreeWeekSent    bool  `dynamodbav:"three_week_sent" json:"three_week_sent"`
	TwoWeekSent      bool  `dynamodbav:"two_week_sent" json:"two_week_sent"`
	OneWeekSent      bool  `dynamodbav:"one_week_sent" json:"one_week_sent"`
	DayOfSent        bool  `dynamodbav:"day_of_sent" json:"day_of_sent"`
	LastEmailSent    int64 `dynamodbav:"last_email_sent" json:"last_email_sent"`
	LastReminderSent int64 `dynamodbav:"last_reminder_sent" json:"last_reminder_sent"`

	// NotifiedAssignee is the assignee the assignment email last went to.
	NotifiedAssignee string `dynamodbav:"notified_assignee,omitempty" json:"notified_assignee,omitempty"`
}

// ReminderFlag names one of the per-offset reminder flags.
type ReminderFlag string

const (
	FlagThreeWeek ReminderFlag = "three_week_sent"
	FlagTwoWeek   ReminderFlag = "two_week_sent"
	FlagOneWeek   ReminderFlag = "one_week_sent"
	FlagDayOf     ReminderFlag = "day_of_sent"
)

func (r EmailReminders) Sent(f ReminderFlag) bool {
	switch f {
	case FlagThreeWeek:
		return r.ThreeWeekSent
	case FlagTwoWeek:
		return r.TwoWeekSent
	case FlagOneWeek:
		return r.OneWeekSent
	case FlagDayOf:
		return r.DayOfSent
	}
	return false
}

func (r *EmailReminders) MarkSent(f ReminderFlag, nowMs int64) {
	switch f {
	case FlagThreeWeek:
		r.ThreeWeekSent = true
	case FlagTwoWeek:
		r.TwoWeekSent = true
	case FlagOneWeek:
		r.OneWeekSent = true
	case FlagDayOf:
		r.DayOfSent = true
	default:
		return
	}
	r.LastReminderSent = nowMs
}

// ReassignedReminders is the reminder state a task starts with when it moves to
// a new assignee.
func ReassignedReminders(nowMs int64) EmailReminders {
	return EmailReminders{AssignmentSent: true, LastEmailSent: nowMs}
}
