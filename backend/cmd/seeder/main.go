package main

import (
	"context"
	"log"
	"time"

	"schoolapi/backend/internal/academic"
	"schoolapi/backend/internal/admin"
	"schoolapi/backend/internal/exam"
	"schoolapi/backend/internal/gateway"
	"schoolapi/backend/internal/grade"
	"schoolapi/backend/internal/shared"
	"schoolapi/backend/internal/student"
)

// Common Credentials
const CommonPassword = "password"

// StudentSeed is one student created through the student service
type StudentSeed struct {
	FullName string
	Sex      string
	Scores   [4]float64 // cw1, midterm, cw2, final
}

func main() {
	log.Println("Starting Database Seeder...")

	if err := shared.LoadEnv(".env"); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := shared.LoadServiceConfig("seeder")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	// Drop all collections to ensure a clean start
	if err := db.Drop(context.Background()); err != nil {
		log.Fatalf("Failed to drop database: %v", err)
	}
	log.Println("Database cleared successfully.")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := shared.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	svc, err := gateway.NewServices(db, nil, cfg)
	if err != nil {
		log.Fatalf("Failed to initialise services: %v", err)
	}

	// --- 1. Staff ---
	adminUser := must(svc.Admin.CreateUser(ctx, "", &admin.CreateUserRequest{
		Name: "Super Admin", Email: "admin@example.com", Password: CommonPassword, Role: shared.RoleAdmin,
	}))
	teacher := must(svc.Admin.CreateUser(ctx, adminUser.ID, &admin.CreateUserRequest{
		Name: "Dr. Hodan Warsame", Email: "teacher@example.com", Password: CommonPassword, Role: shared.RoleTeacher,
	}))
	log.Printf("Seeded users: %s (admin), %s (teacher)", adminUser.Email, teacher.Email)

	// --- 2. Catalog ---
	faculty := must(svc.Admin.CreateFaculty(ctx, adminUser.ID, &admin.FacultyRequest{
		Name: "Faculty of Engineering", Description: "Civil, electrical and computer engineering",
		DeanID: teacher.ID, Code: "ENG", EstablishedYear: 1998, Departments: []string{"Computer", "Civil"},
	}))
	batch := must(svc.Admin.CreateBatch(ctx, &admin.BatchRequest{Name: "Batch 2025"}))
	semester := must(svc.Admin.CreateSemester(ctx, adminUser.ID, &admin.SemesterRequest{
		Department: "Computer", Name: "S1", Title: "First Semester", Status: shared.SemesterRunning,
		StartDate: "2025-09-01", EndDate: "2026-01-31",
	}))
	must(svc.Admin.CreateAnnouncement(ctx, &admin.AnnouncementRequest{
		Title: "Welcome", Description: "Classes start on 1 September.", Receiver: shared.ReceiverStudents,
	}))

	session := must(svc.Academic.CreateAcademic(ctx, &academic.AcademicRequest{
		AcademicYear: "2025/2026", BatchID: batch.ID, SemesterID: semester.ID,
		StartDate: "2025-09-01", EndDate: "2026-06-30",
	}))
	class := must(svc.Academic.CreateClass(ctx, &academic.ClassRequest{
		Name: "ENG Year 1", FacultyID: faculty.ID, SemesterID: semester.ID, TeacherID: teacher.ID,
	}))
	maths := must(svc.Academic.CreateSubject(ctx, &academic.SubjectRequest{
		Name: "Engineering Mathematics", Code: "MTH101", ClassIDs: []string{class.ID},
	}))
	must(svc.Academic.CreateSubject(ctx, &academic.SubjectRequest{
		Name: "Programming Fundamentals", Code: "CS101", ClassIDs: []string{class.ID},
	}))
	must(svc.Academic.CreateTimetable(ctx, &academic.TimetableRequest{
		ClassID: class.ID, SubjectID: maths.ID, FacultyID: faculty.ID, AcademicID: session.ID,
		DayOfWeek: "Monday", StartTime: "08:00", EndTime: "09:30", Date: "2025-09-01", Location: "Hall A",
	}))
	log.Printf("Seeded catalog: faculty %s, academic %s, class %s", faculty.Code, session.AcademicID, class.Name)

	// --- 3. Students (identifiers come from the counter) ---
	seeds := []StudentSeed{
		{"Amina Yusuf", "Female", [4]float64{9, 27, 8, 52}},
		{"Bashir Ali", "Male", [4]float64{7, 22, 9, 41}},
		{"Caaliya Omar", "Female", [4]float64{10, 30, 10, 55}},
	}

	rows := make([]grade.ImportRowRequest, 0, len(seeds))
	for _, seed := range seeds {
		st := must(svc.Students.CreateStudent(ctx, adminUser.ID, &student.CreateRequest{
			FullName: seed.FullName, ClassID: class.ID, Sex: seed.Sex, Password: CommonPassword,
		}))
		log.Printf("Seeded student %s (%s)", st.FullName, st.IDNumber)

		cw1, mid, cw2, final := seed.Scores[0], seed.Scores[1], seed.Scores[2], seed.Scores[3]
		rows = append(rows, grade.ImportRowRequest{IDNumber: st.IDNumber, CW1: &cw1, Midterm: &mid, CW2: &cw2, Final: &final})
	}

	// --- 4. Grades and exams ---
	result := must(svc.Grades.ImportRows(ctx, &grade.ImportRequest{ClassID: class.ID, SubjectID: maths.ID, Rows: rows}))
	log.Printf("Seeded %d grade rows", result.Imported)

	must(svc.Exams.CreateExam(ctx, &exam.ExamRequest{
		Title: "Mathematics Midterm", ExamType: "midterm", Date: "2025-11-03", AcademicID: session.ID,
	}))

	log.Println("All data seeding completed successfully.")
}

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	return v
}
