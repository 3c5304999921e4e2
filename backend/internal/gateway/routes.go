package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"schoolapi/backend/internal/auth"
	"schoolapi/backend/internal/gateway/handlers"
	"schoolapi/backend/internal/gateway/util"
	"schoolapi/backend/internal/shared"
)

// TokenValidator resolves a bearer token to the caller it was issued to
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Principal, error)
}

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(svc *Services, config *shared.ServiceConfig) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(corsOptions(config)))

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{Auth: svc.Auth, Admin: svc.Admin}
	adminHandler := &handlers.AdminHandler{Admin: svc.Admin}
	academicHandler := &handlers.AcademicHandler{Academic: svc.Academic}
	studentHandler := &handlers.StudentHandler{Students: svc.Students}
	gradeHandler := &handlers.GradeHandler{Grades: svc.Grades, MaxUploadBytes: config.UploadMaxBytes}
	examHandler := &handlers.ExamHandler{Exams: svc.Exams}
	attendanceHandler := &handlers.AttendanceHandler{Attendance: svc.Attendance}

	staff := RequireRoles(shared.RoleAdmin, shared.RoleTeacher, shared.RoleUser)
	adminOnly := RequireRoles(shared.RoleAdmin)
	teaching := RequireRoles(shared.RoleAdmin, shared.RoleTeacher)
	studentOnly := RequireRoles(shared.RoleStudent)

	// 3. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		// --- Public Routes ---
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/auth/login", authHandler.Login)
		r.Post("/students/auth/login", authHandler.StudentLogin)
		r.Post("/auth/logout", authHandler.Logout)

		// --- Protected Routes (Require Valid Token) ---
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svc.Auth))

			// Any authenticated caller
			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/change-password", authHandler.ChangePassword)
			r.Get("/announcements", adminHandler.ListAnnouncements)
			r.Get("/announcements/{id}", adminHandler.GetAnnouncement)

			// Student self-service
			r.Route("/students/me", func(r chi.Router) {
				r.Use(studentOnly)
				r.Get("/grades", gradeHandler.MyGrades)
				r.Get("/exam-results", examHandler.MyResults)
				r.Get("/attendance", attendanceHandler.MyAttendance)
			})

			// Staff reads
			r.Group(func(r chi.Router) {
				r.Use(staff)

				r.Get("/faculties", adminHandler.ListFaculties)
				r.Get("/faculties/{id}", adminHandler.GetFaculty)
				r.Get("/batches", adminHandler.ListBatches)
				r.Get("/batches/{id}", adminHandler.GetBatch)
				r.Get("/semesters", adminHandler.ListSemesters)
				r.Get("/semesters/{id}", adminHandler.GetSemester)

				r.Get("/academics", academicHandler.ListAcademics)
				r.Get("/academics/batch/{batch_id}", academicHandler.ListAcademicsByBatch)
				r.Get("/academics/{id}", academicHandler.GetAcademic)
				r.Get("/timetables", academicHandler.ListTimetables)
				r.Get("/timetables/academic/{academic_id}", academicHandler.ListTimetablesByAcademic)
				r.Get("/timetables/{id}", academicHandler.GetTimetable)
				r.Get("/classes", academicHandler.ListClasses)
				r.Get("/classes/{id}", academicHandler.GetClass)
				r.Get("/subjects", academicHandler.ListSubjects)
				r.Get("/subjects/class/{class_id}", academicHandler.ListSubjects)
				r.Get("/subjects/{id}", academicHandler.GetSubject)

				r.Get("/students", studentHandler.ListStudents)
				r.Get("/students/class/{class_id}", studentHandler.ListStudents)
				r.Get("/students/{id}", studentHandler.GetStudent)

				r.Get("/exams", examHandler.ListExams)
				r.Get("/exams/{id}", examHandler.GetExam)
			})

			// Teaching staff: grades, exams, attendance
			r.Group(func(r chi.Router) {
				r.Use(teaching)

				r.Route("/grades", func(r chi.Router) {
					r.Get("/", gradeHandler.ClassGrades)
					r.Put("/", gradeHandler.SaveGrade)
					r.Delete("/", gradeHandler.DeleteGrades)
					r.Post("/upload", gradeHandler.UploadSheet)
					r.Post("/import", gradeHandler.ImportRows)
					r.Get("/template", gradeHandler.Template)
					r.Get("/export", gradeHandler.Export)
					r.Get("/student/{id}", gradeHandler.StudentGrades)
				})

				r.Post("/exams", examHandler.CreateExam)
				r.Put("/exams/{id}", examHandler.UpdateExam)
				r.Delete("/exams/{id}", examHandler.DeleteExam)

				r.Route("/exam-results", func(r chi.Router) {
					r.Post("/", examHandler.SubmitResults)
					r.Patch("/", examHandler.UpdateMark)
					r.Get("/", examHandler.Results)
					r.Get("/student/{id}", examHandler.StudentResults)
				})

				r.Route("/attendance", func(r chi.Router) {
					r.Post("/", attendanceHandler.CreateBulk)
					r.Get("/class/{class_id}", attendanceHandler.ClassDay)
					r.Get("/class/{class_id}/range", attendanceHandler.ClassRange)
					r.Get("/class/{class_id}/today", attendanceHandler.Today)
					r.Get("/class/{class_id}/month", attendanceHandler.Month)
					r.Get("/student/{id}", attendanceHandler.StudentRange)
					r.Get("/{id}", attendanceHandler.GetRecord)
					r.Put("/{id}", attendanceHandler.UpdateRecord)
					r.Delete("/{id}", attendanceHandler.DeleteRecord)
				})
			})

			// Admin Management
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Post("/auth/register", authHandler.Register)

				r.Route("/users", func(r chi.Router) {
					r.Post("/", adminHandler.CreateUser)
					r.Get("/", adminHandler.ListUsers)
					r.Get("/{id}", adminHandler.GetUser)
					r.Put("/{id}", adminHandler.UpdateUser)
					r.Delete("/{id}", adminHandler.DeleteUser)
				})

				r.Post("/faculties", adminHandler.CreateFaculty)
				r.Put("/faculties/{id}", adminHandler.UpdateFaculty)
				r.Delete("/faculties/{id}", adminHandler.DeleteFaculty)

				r.Post("/batches", adminHandler.CreateBatch)
				r.Put("/batches/{id}", adminHandler.UpdateBatch)
				r.Delete("/batches/{id}", adminHandler.DeleteBatch)

				r.Post("/semesters", adminHandler.CreateSemester)
				r.Put("/semesters/{id}", adminHandler.UpdateSemester)
				r.Delete("/semesters/{id}", adminHandler.DeleteSemester)

				r.Post("/announcements", adminHandler.CreateAnnouncement)
				r.Put("/announcements/{id}", adminHandler.UpdateAnnouncement)
				r.Delete("/announcements/{id}", adminHandler.DeleteAnnouncement)

				r.Post("/academics", academicHandler.CreateAcademic)
				r.Put("/academics/{id}", academicHandler.UpdateAcademic)
				r.Delete("/academics/{id}", academicHandler.DeleteAcademic)

				r.Post("/timetables", academicHandler.CreateTimetable)
				r.Put("/timetables/{id}", academicHandler.UpdateTimetable)
				r.Delete("/timetables/{id}", academicHandler.DeleteTimetable)

				r.Post("/classes", academicHandler.CreateClass)
				r.Put("/classes/{id}", academicHandler.UpdateClass)
				r.Delete("/classes/{id}", academicHandler.DeleteClass)

				r.Post("/subjects", academicHandler.CreateSubject)
				r.Put("/subjects/{id}", academicHandler.UpdateSubject)
				r.Delete("/subjects/{id}", academicHandler.DeleteSubject)

				r.Post("/students", studentHandler.CreateStudent)
				r.Put("/students/{id}", studentHandler.UpdateStudent)
				r.Delete("/students/{id}", studentHandler.DeleteStudent)
			})
		})
	})

	return r
}

func corsOptions(config *shared.ServiceConfig) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if config == nil {
		return opts
	}
	if len(config.CORS.AllowedOrigins) > 0 {
		opts.AllowedOrigins = config.CORS.AllowedOrigins
	}
	if len(config.CORS.AllowedMethods) > 0 {
		opts.AllowedMethods = config.CORS.AllowedMethods
	}
	if len(config.CORS.AllowedHeaders) > 0 {
		opts.AllowedHeaders = config.CORS.AllowedHeaders
	}
	if config.CORS.MaxAge > 0 {
		opts.MaxAge = config.CORS.MaxAge
	}
	opts.AllowCredentials = config.CORS.AllowCredentials
	return opts
}

// AuthMiddleware creates a middleware that validates tokens and stores the
// caller in the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Extract Token
			tokenStr, err := util.ExtractToken(r)
			if err != nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}

			// 2. Validate
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			principal, err := validator.ValidateToken(ctx, tokenStr)
			if err != nil {
				util.HandleError(w, err)
				return
			}
			if principal == nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			// 3. Inject the caller into the context
			next.ServeHTTP(w, r.WithContext(util.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireRoles rejects callers whose role is not listed with 403.
// It must run after AuthMiddleware.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := util.PrincipalFrom(r)
			if p == nil {
				util.WriteJSONError(w, http.StatusUnauthorized, "Authorization token required")
				return
			}
			if !allowed[p.Role] {
				util.WriteJSONError(w, http.StatusForbidden, "Access denied: insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
