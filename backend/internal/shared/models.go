// ============================================================================
// backend/internal/shared/models.go
// Shared data models and structs for MongoDB documents
// ============================================================================

package shared

import (
	"time"
)

// ============================================================================
// Collections
// ============================================================================

const (
	CollUsers         = "users"
	CollSessions      = "sessions"
	CollStudents      = "students"
	CollFaculties     = "faculties"
	CollClasses       = "classes"
	CollSubjects      = "subjects"
	CollBatches       = "batches"
	CollSemesters     = "semesters"
	CollAcademics     = "academics"
	CollTimetables    = "timetables"
	CollGrades        = "grades"
	CollExams         = "exams"
	CollExamResults   = "exam_results"
	CollAttendance    = "attendance"
	CollAnnouncements = "announcements"
	CollCounters      = "counters"
	CollAuditLogs     = "audit_logs"
)

// ============================================================================
// User Models
// ============================================================================

// User represents a staff account (admin, teacher or plain user)
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password_hash" json:"-"` // Never expose in JSON
	Role         string    `bson:"role" json:"role"`       // admin, teacher, user
	IsActive     bool      `bson:"is_active" json:"is_active"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Session represents an issued token that has not been revoked
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	SubjectID string    `bson:"subject_id" json:"subject_id"` // user or student _id
	Kind      string    `bson:"kind" json:"kind"`             // user, student
	Token     string    `bson:"token" json:"-"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Student represents an enrolled student. IDNumber is the human-readable
// identifier allocated from the studentId counter.
type Student struct {
	ID             string     `bson:"_id" json:"id"`
	FullName       string     `bson:"full_name" json:"full_name"`
	IDNumber       string     `bson:"id_number" json:"id_number"`
	ClassID        string     `bson:"class_id" json:"class_id"`
	FacultyID      string     `bson:"faculty_id,omitempty" json:"faculty_id,omitempty"`
	Sex            string     `bson:"sex" json:"sex"` // Male, Female
	DateOfBirth    *time.Time `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	PlaceOfBirth   string     `bson:"place_of_birth,omitempty" json:"place_of_birth,omitempty"`
	Nationality    string     `bson:"nationality,omitempty" json:"nationality,omitempty"`
	MotherName     string     `bson:"mother_name,omitempty" json:"mother_name,omitempty"`
	MaritalStatus  string     `bson:"marital_status,omitempty" json:"marital_status,omitempty"`
	Email          string     `bson:"email,omitempty" json:"email,omitempty"`
	Mobile         string     `bson:"mobile,omitempty" json:"mobile,omitempty"`
	Address        string     `bson:"address,omitempty" json:"address,omitempty"`
	NextOfKin      string     `bson:"next_of_kin,omitempty" json:"next_of_kin,omitempty"`
	SchoolName     string     `bson:"school_name,omitempty" json:"school_name,omitempty"`
	GraduationYear int        `bson:"graduation_year,omitempty" json:"graduation_year,omitempty"`
	ProgramMode    string     `bson:"program_mode,omitempty" json:"program_mode,omitempty"` // Full Time, Part Time
	PasswordHash   string     `bson:"password_hash" json:"-"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ============================================================================
// Organisation Models
// ============================================================================

// Faculty represents a faculty; Code prefixes student identifiers
type Faculty struct {
	ID              string    `bson:"_id" json:"id"`
	Name            string    `bson:"name" json:"name"`
	ArabicName      string    `bson:"arabic_name,omitempty" json:"arabic_name,omitempty"`
	Description     string    `bson:"description" json:"description"`
	DeanID          string    `bson:"dean_id,omitempty" json:"dean_id,omitempty"`
	Code            string    `bson:"code,omitempty" json:"code,omitempty"`
	EstablishedYear int       `bson:"established_year" json:"established_year"`
	Departments     []string  `bson:"departments" json:"departments"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Class represents a group of students taught together
type Class struct {
	ID         string    `bson:"_id" json:"id"`
	Name       string    `bson:"name" json:"name"`
	FacultyID  string    `bson:"faculty_id,omitempty" json:"faculty_id,omitempty"`
	SemesterID string    `bson:"semester_id,omitempty" json:"semester_id,omitempty"`
	TeacherID  string    `bson:"teacher_id,omitempty" json:"teacher_id,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Subject represents a taught subject; Name and Code are unique
type Subject struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Code        string    `bson:"code" json:"code"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	ClassIDs    []string  `bson:"class_ids" json:"class_ids"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Batch represents an intake cohort
type Batch struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Semester represents a teaching period
type Semester struct {
	ID         string    `bson:"_id" json:"id"`
	Department string    `bson:"department" json:"department"`
	Name       string    `bson:"name" json:"name"`
	Title      string    `bson:"title" json:"title"`
	Status     string    `bson:"status" json:"status"` // running, completed, cancelled
	StartDate  time.Time `bson:"start_date" json:"start_date"`
	EndDate    time.Time `bson:"end_date" json:"end_date"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Announcement is a notice addressed to teachers or students
type Announcement struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Receiver    string    `bson:"receiver" json:"receiver"` // teachers, students
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ============================================================================
// Academic Calendar Models
// ============================================================================

// Academic represents an academic session, identified by AcademicID (ACC<n>)
type Academic struct {
	ID           string    `bson:"_id" json:"id"`
	AcademicID   string    `bson:"academic_id" json:"academic_id"`
	AcademicYear string    `bson:"academic_year" json:"academic_year"`
	BatchID      string    `bson:"batch_id" json:"batch_id"`
	SemesterID   string    `bson:"semester_id,omitempty" json:"semester_id,omitempty"`
	StartDate    time.Time `bson:"start_date" json:"start_date"`
	EndDate      time.Time `bson:"end_date" json:"end_date"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Timetable is one scheduled slot, identified by TimetableID (TTB<n>)
type Timetable struct {
	ID          string    `bson:"_id" json:"id"`
	TimetableID string    `bson:"timetable_id" json:"timetable_id"`
	ClassID     string    `bson:"class_id" json:"class_id"`
	SubjectID   string    `bson:"subject_id" json:"subject_id"`
	FacultyID   string    `bson:"faculty_id" json:"faculty_id"`
	AcademicID  string    `bson:"academic_id" json:"academic_id"`
	DayOfWeek   string    `bson:"day_of_week" json:"day_of_week"`
	StartTime   string    `bson:"start_time" json:"start_time"` // HH:MM
	EndTime     string    `bson:"end_time" json:"end_time"`     // HH:MM
	Date        string    `bson:"date" json:"date"`
	Location    string    `bson:"location" json:"location"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ============================================================================
// Assessment Models
// ============================================================================

// Grade is the per (student, class, subject) component record. Absent
// components are nil, not zero. Total is the raw sum stored on write.
type Grade struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	StudentID string    `bson:"student_id" json:"student_id"`
	ClassID   string    `bson:"class_id" json:"class_id"`
	SubjectID string    `bson:"subject_id" json:"subject_id"`
	CW1       *float64  `bson:"cw1,omitempty" json:"cw1,omitempty"`
	CW2       *float64  `bson:"cw2,omitempty" json:"cw2,omitempty"`
	Midterm   *float64  `bson:"midterm,omitempty" json:"midterm,omitempty"`
	Final     *float64  `bson:"final,omitempty" json:"final,omitempty"`
	Total     float64   `bson:"total" json:"total"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Exam is a scheduled assessment of one component type
type Exam struct {
	ID         string    `bson:"_id" json:"id"`
	Title      string    `bson:"title" json:"title"`
	ExamType   string    `bson:"exam_type" json:"exam_type"` // cw1, cw2, midterm, final
	Date       time.Time `bson:"date" json:"date"`
	AcademicID string    `bson:"academic_id,omitempty" json:"academic_id,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// ExamResult holds one student's marks for one exam and subject
type ExamResult struct {
	ID        string    `bson:"_id" json:"id"`
	ExamID    string    `bson:"exam_id" json:"exam_id"`
	StudentID string    `bson:"student_id" json:"student_id"`
	SubjectID string    `bson:"subject_id" json:"subject_id"`
	ClassID   string    `bson:"class_id" json:"class_id"`
	Marks     float64   `bson:"marks" json:"marks"`
	Remark    string    `bson:"remark,omitempty" json:"remark,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Attendance is one student's status for a class and subject on a day
type Attendance struct {
	ID        string    `bson:"_id" json:"id"`
	Date      time.Time `bson:"date" json:"date"` // midnight UTC
	Status    string    `bson:"status" json:"status"`
	StudentID string    `bson:"student_id" json:"student_id"`
	ClassID   string    `bson:"class_id" json:"class_id"`
	SubjectID string    `bson:"subject_id" json:"subject_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// SequenceCounter is the single named counter per purpose. It is only ever
// changed by the atomic $inc in sequence.MongoCounterStore.
type SequenceCounter struct {
	Purpose string `bson:"_id" json:"purpose"`
	Seq     int64  `bson:"seq" json:"seq"`
}

// ============================================================================
// Constants
// ============================================================================

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleUser    = "user"
	RoleStudent = "student"
)

// Principal kinds
const (
	KindUser    = "user"
	KindStudent = "student"
)

// Semester statuses
const (
	SemesterRunning   = "running"
	SemesterCompleted = "completed"
	SemesterCancelled = "cancelled"
)

// Announcement receivers
const (
	ReceiverTeachers = "teachers"
	ReceiverStudents = "students"
)

// Attendance statuses
const (
	AttendancePresent = "Present"
	AttendanceAbsent  = "Absent"
	AttendanceLeave   = "Leave"
	AttendanceLate    = "Late"
)

// Audit actions
const (
	ActionUserCreate     = "USER_CREATE"
	ActionUserUpdate     = "USER_UPDATE"
	ActionUserDelete     = "USER_DELETE"
	ActionStudentCreate  = "STUDENT_CREATE"
	ActionStudentDelete  = "STUDENT_DELETE"
	ActionGradesImport   = "GRADES_IMPORT"
	ActionGradesDelete   = "GRADES_DELETE"
	ActionFacultyCreate  = "FACULTY_CREATE"
	ActionFacultyDelete  = "FACULTY_DELETE"
	ActionSemesterCreate = "SEMESTER_CREATE"
)

// IsValidRole checks if a staff role is valid
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleUser:
		return true
	}
	return false
}

// IsValidSemesterStatus checks if a semester status is valid
func IsValidSemesterStatus(status string) bool {
	switch status {
	case SemesterRunning, SemesterCompleted, SemesterCancelled:
		return true
	}
	return false
}

// IsValidAttendanceStatus checks if an attendance status is valid
func IsValidAttendanceStatus(status string) bool {
	switch status {
	case AttendancePresent, AttendanceAbsent, AttendanceLeave, AttendanceLate:
		return true
	}
	return false
}
