package outbox

const attendanceRecordedSchema = `{
  "type": "object",
  "title": "AttendanceRecorded",
  "properties": {
    "attendance_id": {"type": "string"},
    "assistant_id": {"type": "string"},
    "source": {"type": "string", "enum": ["one_time", "weekly", "call_session", "other"]},
    "session_id": {"type": "string"},
    "call_session_id": {"type": "string"},
    "center_id": {"type": "string"},
    "session_subject": {"type": "string"},
    "time_recorded": {"type": "string", "format": "date-time"},
    "civil_day": {"type": "string", "format": "date"},
    "delay_minutes": {"type": "integer"}
  },
  "required": ["attendance_id", "assistant_id", "source", "session_subject", "time_recorded", "civil_day", "delay_minutes"],
  "additionalProperties": false
}`

const attendanceChangedSchema = `{
  "type": "object",
  "title": "AttendanceChanged",
  "properties": {
    "attendance_id": {"type": "string"},
    "assistant_id": {"type": "string"},
    "change": {"type": "string", "enum": ["updated", "deleted", "restored"]},
    "delay_minutes": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "reason": {"type": "string"}
  },
  "required": ["attendance_id", "assistant_id", "change", "delay_minutes", "occurred_at"],
  "additionalProperties": false
}`
