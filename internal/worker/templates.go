package worker

import "html/template"

var recordTemplate = template.Must(template.New("record").Parse(`<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; }
    table { border-collapse: collapse; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
  </style>
</head>
<body>
  <h2>Visit Record</h2>
  <table>
    <tr><th>Patient</th><td>{{.Patient.Name}}</td></tr>
    <tr><th>Clinician</th><td>{{.Clinician.Name}} ({{.Clinician.Department}})</td></tr>
    <tr><th>Date</th><td>{{.Appointment.Date}}</td></tr>
    <tr><th>Time</th><td>{{.Appointment.Time}}</td></tr>
    <tr><th>Status</th><td>{{.Appointment.Status}}</td></tr>
    {{if .Outcome}}
    <tr><th>Diagnosis</th><td>{{.Outcome.Diagnosis}}</td></tr>
    <tr><th>Prescription</th><td>{{.Outcome.Prescription}}</td></tr>
    {{if .Outcome.Notes}}<tr><th>Notes</th><td>{{.Outcome.Notes}}</td></tr>{{end}}
    {{if .Outcome.FollowUpDate}}<tr><th>Next visit</th><td>{{.Outcome.FollowUpDate}}</td></tr>{{end}}
    {{end}}
  </table>
</body>
</html>`))

var reportTemplate = template.Must(template.New("report").Parse(`<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
    .summary { background-color: #f2f2f2; padding: 15px; margin: 20px 0; }
  </style>
</head>
<body>
  <h2>Monthly Activity Report - {{.Summary.ClinicianName}}</h2>
  <div class="summary">
    <p><strong>Month:</strong> {{.Summary.Month}}</p>
    <p><strong>Total appointments:</strong> {{.Summary.Total}}</p>
    <p><strong>Completed:</strong> {{.Summary.Completed}}</p>
    <p><strong>Cancelled:</strong> {{.Summary.Cancelled}}</p>
    <p><strong>Completion rate:</strong> {{printf "%.1f" .CompletionPct}}%</p>
  </div>
  <h3>Appointments</h3>
  <table>
    <tr><th>Date</th><th>Time</th><th>Patient</th><th>Status</th><th>Diagnosis</th></tr>
    {{range .Rows}}
    <tr>
      <td>{{.Date}}</td>
      <td>{{.Time}}</td>
      <td>{{.PatientName}}</td>
      <td>{{.Status}}</td>
      <td>{{.Diagnosis}}</td>
    </tr>
    {{end}}
  </table>
</body>
</html>`))
