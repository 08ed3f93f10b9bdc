package notify

import "html/template"

const layoutOpen = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`

const layoutFooter = `<div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #ddd; font-size: 12px; color: #666;">
<p>This is an automated message from {{.AppName}}.</p>
</div>
</div>`

const actionButtons = `{{define "actions"}}<div style="margin: 20px 0; text-align: center;">
<a href="{{.Links.ConfirmURL}}" style="display: inline-block; padding: 12px 24px; background: #4CAF50; color: white; text-decoration: none; border-radius: 6px; font-weight: bold;">&#10003; Accept Task</a>
<a href="{{.Links.DeclineURL}}" style="display: inline-block; padding: 12px 24px; background: #ff5252; color: white; text-decoration: none; border-radius: 6px; font-weight: bold;">&#10007; Decline Task</a>
</div>
<p style="text-align: center; color: #666; margin-top: 10px;">Or <a href="{{.DashboardURL}}">manage in dashboard</a></p>{{end}}`

const familyNote = `{{define "family"}}{{if .IncludesFamily}}<p style="color: #666; font-style: italic; margin: 15px 0;"><strong>Note:</strong> Family members can respond on behalf of {{.AssigneeName}}.</p>{{end}}{{end}}`

var assignedTmpl = template.Must(template.New("assigned").Parse(actionButtons + familyNote + layoutOpen + `
<h2 style="color: #FF6F00;">New Task Assigned to {{.AssigneeName}}</h2>
<h3 style="color: #333;">{{.Task.Title}}</h3>
<div style="background: #FFF3E0; padding: 15px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #FF9800;">
<p><strong>Event:</strong> {{.Event.Title}}</p>
<p><strong>Event Date:</strong> {{.EventDate}}</p>
<p><strong>Task Due Date:</strong> {{.DueDate}}</p>
{{if .Task.Description}}<p><strong>Description:</strong> {{.Task.Description}}</p>{{end}}
</div>
{{template "family" .}}
{{if .Links}}{{template "actions" .}}{{else}}<div style="margin: 20px 0; text-align: center;">
<a href="{{.DashboardURL}}" style="display: inline-block; padding: 12px 24px; background: #FF9800; color: white; text-decoration: none; border-radius: 6px; font-weight: bold;">View Task in Dashboard</a>
</div>
<p style="color: #666;">Please confirm this task when you're ready to commit to completing it.</p>{{end}}
` + layoutFooter))

var reminderTmpl = template.Must(template.New("reminder").Parse(actionButtons + familyNote + layoutOpen + `
<h2 style="color: {{.Color}};">Task Reminder - {{.Label}}</h2>
<h3 style="color: #333;">{{.Task.Title}}</h3>
<div style="background: #FFF3E0; padding: 15px; border-radius: 8px; margin: 20px 0; border-left: 4px solid {{.Color}};">
<p><strong>Event:</strong> {{.Event.Title}}</p>
<p><strong>Due Date:</strong> {{.DueDate}}</p>
<p><strong>Days Until Due:</strong> {{.DaysUntil}} days</p>
{{if .Task.Description}}<p><strong>Description:</strong> {{.Task.Description}}</p>{{end}}
<p><strong>Status:</strong> {{if .Confirmed}}&#9989; Confirmed{{else}}&#9203; Pending Confirmation{{end}}</p>
</div>
{{if .Confirmed}}<p style="color: #4CAF50; font-weight: bold;">&#9989; You have already confirmed this task.</p>{{else}}{{template "family" .}}
{{if .Links}}{{template "actions" .}}{{else}}<div style="margin: 20px 0;">
<a href="{{.DashboardURL}}" style="display: inline-block; padding: 12px 24px; background: #4CAF50; color: white; text-decoration: none; border-radius: 6px; font-weight: bold;">Confirm Task Now</a>
</div>
<p style="color: #666;">Please confirm this task if you haven't already.</p>{{end}}{{end}}
` + layoutFooter))

var confirmedTmpl = template.Must(template.New("confirmed").Parse(layoutOpen + `
<h2 style="color: #4CAF50;">Task Confirmed</h2>
<h3 style="color: #333;">{{.Task.Title}}</h3>
<div style="background: #E8F5E9; padding: 15px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #4CAF50;">
<p><strong>Event:</strong> {{.Event.Title}}</p>
<p><strong>Due Date:</strong> {{.DueDate}}</p>
<p><strong>Confirmed By:</strong> {{.ActorName}}</p>
<p><strong>Confirmed At:</strong> {{.At}}</p>
{{if .Task.Description}}<p><strong>Description:</strong> {{.Task.Description}}</p>{{end}}
</div>
<div style="margin: 20px 0; text-align: center;">
<a href="{{.EventURL}}" style="display: inline-block; padding: 12px 24px; background: #0b57d0; color: white; text-decoration: none; border-radius: 6px; font-weight: bold;">View Event Details</a>
</div>
<p style="color: #666;">Thank you for confirming this task. The event organizers have been notified.</p>
` + layoutFooter))

var declinedTmpl = template.Must(template.New("declined").Parse(layoutOpen + `
<h2 style="color: #ff5252;">Task Declined</h2>
<h3 style="color: #333;">{{.Task.Title}}</h3>
<div style="background: #FFEBEE; padding: 15px; border-radius: 8px; margin: 20px 0; border-left: 4px solid #ff5252;">
<p><strong>Event:</strong> {{.Event.Title}}</p>
<p><strong>Due Date:</strong> {{.DueDate}}</p>
<p><strong>Declined By:</strong> {{.ActorName}}</p>
<p><strong>Declined At:</strong> {{.At}}</p>
</div>
<p>This task needs a new assignee.</p>
<div style="margin: 20px 0; text-align: center;">
<a href="{{.EventURL}}" style="display: inline-block; padding: 12px 24px; background: #ff9800; color: white; text-decoration: none; border-radius: 6px; font-weight: bold;">Reassign Task</a>
</div>
` + layoutFooter))

var eventCreatedTmpl = template.Must(template.New("event").Parse(layoutOpen + `
<h2 style="color: #0b57d0;">New Event Created</h2>
<h3 style="color: #333;">{{.Event.Title}}</h3>
<div style="background: #f5f5f5; padding: 15px; border-radius: 8px; margin: 20px 0;">
<p><strong>Date:</strong> {{.EventDate}}</p>
<p><strong>Time:</strong> {{or .Event.Time "TBD"}}</p>
<p><strong>Location:</strong> {{or .Event.Location "TBD"}}</p>
{{if .Event.Description}}<p><strong>Description:</strong> {{.Event.Description}}</p>{{end}}
</div>
<div style="margin: 20px 0; text-align: center;">
<a href="{{.EventURL}}" style="display: inline-block; padding: 12px 24px; background: #0b57d0; color: white; text-decoration: none; border-radius: 6px; font-weight: bold;">View Event Details</a>
</div>
` + layoutFooter))
