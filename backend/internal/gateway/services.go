package gateway

import (
	"log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"schoolapi/backend/internal/academic"
	"schoolapi/backend/internal/admin"
	"schoolapi/backend/internal/attendance"
	"schoolapi/backend/internal/auth"
	"schoolapi/backend/internal/exam"
	"schoolapi/backend/internal/gateway/handlers"
	"schoolapi/backend/internal/grade"
	"schoolapi/backend/internal/sequence"
	"schoolapi/backend/internal/shared"
	"schoolapi/backend/internal/student"
)

// Services holds every domain service the router dispatches to.
// It is built once in main.go and shared by all handlers.
type Services struct {
	Auth       handlers.Authenticator
	Admin      *admin.AdminService
	Students   *student.StudentService
	Academic   *academic.AcademicService
	Grades     *grade.GradeService
	Exams      *exam.ExamService
	Attendance *attendance.AttendanceService

	// Kept to close it when the server shuts down
	redis *redis.Client
}

// NewServices wires the services over one database. rdb may be nil, which
// disables the principal cache.
func NewServices(db *mongo.Database, rdb *redis.Client, config *shared.ServiceConfig) (*Services, error) {
	counters := sequence.NewMongoCounterStore(db)

	authSvc := auth.NewAuthService(db, config, auth.NewPrincipalCache(rdb, config.Redis.CacheTTL))

	academicSvc, err := academic.NewAcademicService(db, config, counters)
	if err != nil {
		return nil, err
	}

	ids := student.NewIDAllocator(student.NewMongoFacultyLookup(db), counters)

	log.Printf("INFO: services wired (id allocation: %s, principal cache: %t)", config.IDAllocation, rdb != nil)

	return &Services{
		Auth:       authSvc,
		Admin:      admin.NewAdminService(db, config, authSvc),
		Students:   student.NewStudentService(db, config, ids, authSvc),
		Academic:   academicSvc,
		Grades:     grade.NewGradeService(grade.NewMongoRepository(db)),
		Exams:      exam.NewExamService(db),
		Attendance: attendance.NewAttendanceService(db),
		redis:      rdb,
	}, nil
}

// Close releases the cache connection.
// Should be called via defer in main().
func (s *Services) Close() {
	if s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		log.Printf("WARN: Error closing Redis connection: %v", err)
	}
}
