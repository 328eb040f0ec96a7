package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"coursehub/internal/config"
	"coursehub/internal/db"
	"coursehub/internal/logging"
	"coursehub/internal/model"
	"coursehub/internal/repository"
)

// Catalog is the seed file layout: each department with the subjects it teaches.
type Catalog struct {
	Departments []struct {
		Name     string   `json:"name"`
		Subjects []string `json:"subjects"`
	} `json:"departments"`
}

const defaultCatalog = `{
  "departments": [
    {"name": "Computer Science", "subjects": ["Data Structures", "Algorithms", "Operating Systems", "Databases"]},
    {"name": "Information Systems", "subjects": ["Databases", "Systems Analysis", "Web Development"]},
    {"name": "Artificial Intelligence", "subjects": ["Algorithms", "Machine Learning", "Linear Algebra"]}
  ]
}`

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting seed script...")

	catalog, err := loadCatalog(os.Getenv("SEED_FILE"))
	if err != nil {
		logger.Fatalf("Failed to read catalog: %v", err)
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	ctx := context.Background()
	departments, subjects, err := seed(ctx,
		repository.NewDepartmentRepository(gormDB),
		repository.NewSubjectRepository(gormDB),
		catalog, logger)
	if err != nil {
		logger.Fatalf("Failed to seed catalog: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"departments": departments,
		"subjects":    subjects,
	}).Info("Seed completed successfully")
}

// loadCatalog reads path, or the built-in catalog when path is empty.
func loadCatalog(path string) (*Catalog, error) {
	data := []byte(defaultCatalog)
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &catalog, nil
}

// seed creates missing departments and subjects. Existing subjects are left
// untouched. It returns the number of departments processed and subjects created.
func seed(ctx context.Context, departments repository.DepartmentRepository, subjects repository.SubjectRepository, catalog *Catalog, log logrus.FieldLogger) (int, int, error) {
	taughtIn := map[string][]uint{}
	for _, d := range catalog.Departments {
		department, err := departments.FirstOrCreate(ctx, d.Name)
		if err != nil {
			return 0, 0, fmt.Errorf("department %q: %w", d.Name, err)
		}
		for _, name := range d.Subjects {
			taughtIn[name] = append(taughtIn[name], department.ID)
		}
	}

	names := make([]string, 0, len(taughtIn))
	for name := range taughtIn {
		names = append(names, name)
	}
	sort.Strings(names)

	created := 0
	for _, name := range names {
		_, err := subjects.FindByName(ctx, name)
		if err == nil {
			log.WithField("subject", name).Debug("subject exists, skipping")
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, 0, fmt.Errorf("subject %q: %w", name, err)
		}
		if err := subjects.Create(ctx, &model.Subject{Name: name}, taughtIn[name]); err != nil {
			return 0, 0, fmt.Errorf("create subject %q: %w", name, err)
		}
		created++
	}
	return len(catalog.Departments), created, nil
}
