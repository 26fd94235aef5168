package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smartcycle/telemetry-server/internal/models"
)

// defaultWardLocation is where a freshly provisioned bike is placed
// until its first reading arrives.
var defaultWardLocation = models.Location{Lat: 19.0760, Lng: 72.8777}

// FileStore persists every collection as a JSON document on disk:
// users.json, guardians.json, bikes.json and one daily/<day>.json ledger
// per UTC calendar day. Each mutation is a full load-modify-store of the
// owning document, serialized by a per-collection mutex so concurrent
// writers cannot lose updates.
type FileStore struct {
	dataDir  string
	dailyDir string

	usersMu     sync.Mutex
	guardiansMu sync.Mutex
	bikesMu     sync.Mutex
	ledgerMu    sync.Mutex
}

// OpenFileStore prepares the data directory and seeds missing
// collection files with empty documents.
func OpenFileStore(dataDir string) (*FileStore, error) {
	dailyDir := filepath.Join(dataDir, "daily")
	if err := os.MkdirAll(dailyDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileStore{dataDir: dataDir, dailyDir: dailyDir}
	for _, name := range []string{"users.json", "guardians.json", "bikes.json"} {
		path := filepath.Join(dataDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := writeJSONFile(path, []struct{}{}); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

func readJSONFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// --- users ---

func (s *FileStore) usersPath() string { return filepath.Join(s.dataDir, "users.json") }

func (s *FileStore) loadUsers() ([]models.User, error) {
	var users []models.User
	if err := readJSONFile(s.usersPath(), &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *FileStore) CreateUser(ctx context.Context, name, email, mobile, passwordHash string) (*models.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}

	maxID := 0
	for _, u := range users {
		if u.Email == email {
			return nil, ErrDuplicateEmail
		}
		if u.ID > maxID {
			maxID = u.ID
		}
	}

	user := models.User{
		ID:       maxID + 1,
		Name:     name,
		Email:    email,
		Mobile:   mobile,
		Password: passwordHash,
	}
	users = append(users, user)
	if err := writeJSONFile(s.usersPath(), users); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *FileStore) findUser(match func(models.User) bool) (*models.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if match(users[i]) {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) FindUserByID(ctx context.Context, id int) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.ID == id })
}

func (s *FileStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email })
}

func (s *FileStore) FindUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Mobile == mobile })
}

// --- bikes ---

func (s *FileStore) bikesPath() string { return filepath.Join(s.dataDir, "bikes.json") }

func (s *FileStore) loadBikes() ([]models.BikeState, error) {
	var bikes []models.BikeState
	if err := readJSONFile(s.bikesPath(), &bikes); err != nil {
		return nil, err
	}
	return bikes, nil
}

func (s *FileStore) UpsertTelemetry(ctx context.Context, bikeID string, loc models.Location, avgSpeed, battery float64, seenAt time.Time) error {
	s.bikesMu.Lock()
	defer s.bikesMu.Unlock()

	bikes, err := s.loadBikes()
	if err != nil {
		return err
	}

	found := false
	for i := range bikes {
		if bikes[i].BikeID == bikeID {
			bikes[i].LastSeen = seenAt
			bikes[i].CurrentLocation = loc
			bikes[i].AvgSpeed = avgSpeed
			bikes[i].BatteryLevel = battery
			found = true
			break
		}
	}
	if !found {
		bikes = append(bikes, models.BikeState{
			BikeID:          bikeID,
			Status:          "active",
			LastSeen:        seenAt,
			CreatedAt:       seenAt,
			CurrentLocation: loc,
			AvgSpeed:        avgSpeed,
			BatteryLevel:    battery,
		})
	}
	return writeJSONFile(s.bikesPath(), bikes)
}

func (s *FileStore) ListBikes(ctx context.Context) ([]models.BikeState, error) {
	s.bikesMu.Lock()
	defer s.bikesMu.Unlock()
	return s.loadBikes()
}

func (s *FileStore) FindBike(ctx context.Context, bikeID string) (*models.BikeState, error) {
	s.bikesMu.Lock()
	defer s.bikesMu.Unlock()

	bikes, err := s.loadBikes()
	if err != nil {
		return nil, err
	}
	for i := range bikes {
		if bikes[i].BikeID == bikeID {
			return &bikes[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) ListBikesByGuardian(ctx context.Context, guardianID string) ([]models.BikeState, error) {
	s.bikesMu.Lock()
	defer s.bikesMu.Unlock()

	bikes, err := s.loadBikes()
	if err != nil {
		return nil, err
	}
	scoped := make([]models.BikeState, 0)
	for _, b := range bikes {
		if b.GuardianID == guardianID {
			scoped = append(scoped, b)
		}
	}
	return scoped, nil
}

// --- guardians ---

func (s *FileStore) guardiansPath() string { return filepath.Join(s.dataDir, "guardians.json") }
func (s *FileStore) sequencePath() string  { return filepath.Join(s.dataDir, "sequence.json") }

func (s *FileStore) loadGuardians() ([]models.Guardian, error) {
	var guardians []models.Guardian
	if err := readJSONFile(s.guardiansPath(), &guardians); err != nil {
		return nil, err
	}
	return guardians, nil
}

func (s *FileStore) GetOrCreateGuardian(ctx context.Context, user *models.User) (*models.Guardian, error) {
	s.guardiansMu.Lock()
	defer s.guardiansMu.Unlock()

	guardians, err := s.loadGuardians()
	if err != nil {
		return nil, err
	}
	for i := range guardians {
		if guardians[i].UserID == user.ID {
			return &guardians[i], nil
		}
	}

	guardian := models.Guardian{
		GuardianID: fmt.Sprintf("G%03d", len(guardians)+1),
		UserID:     user.ID,
		Name:       user.Name,
		Email:      user.Email,
		Phone:      user.Mobile,
		CreatedAt:  time.Now().UTC(),
		Status:     "active",
		Wards:      []models.Ward{},
	}
	guardians = append(guardians, guardian)
	if err := writeJSONFile(s.guardiansPath(), guardians); err != nil {
		return nil, err
	}
	return &guardian, nil
}

func (s *FileStore) FindGuardianByUser(ctx context.Context, userID int) (*models.Guardian, error) {
	s.guardiansMu.Lock()
	defer s.guardiansMu.Unlock()

	guardians, err := s.loadGuardians()
	if err != nil {
		return nil, err
	}
	for i := range guardians {
		if guardians[i].UserID == userID {
			return &guardians[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) ListGuardians(ctx context.Context) ([]models.Guardian, error) {
	s.guardiansMu.Lock()
	defer s.guardiansMu.Unlock()
	return s.loadGuardians()
}

// nextProvisionSeq advances the persisted provisioning sequence. Callers
// must hold guardiansMu.
func (s *FileStore) nextProvisionSeq() (int, error) {
	var seq struct {
		Provision int `json:"provision"`
	}
	if err := readJSONFile(s.sequencePath(), &seq); err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	seq.Provision++
	if err := writeJSONFile(s.sequencePath(), seq); err != nil {
		return 0, err
	}
	return seq.Provision, nil
}

func (s *FileStore) AddWard(ctx context.Context, userID int, req models.WardRequest) (*models.Ward, *models.BikeState, error) {
	s.guardiansMu.Lock()
	defer s.guardiansMu.Unlock()
	s.bikesMu.Lock()
	defer s.bikesMu.Unlock()

	guardians, err := s.loadGuardians()
	if err != nil {
		return nil, nil, err
	}
	idx := -1
	for i := range guardians {
		if guardians[i].UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil, ErrNotFound
	}

	seq, err := s.nextProvisionSeq()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	ward := models.Ward{
		WardID:    fmt.Sprintf("W%03d", seq),
		Name:      req.Name,
		Age:       req.Age,
		Grade:     req.Grade,
		BikeID:    fmt.Sprintf("BIKE%03d", seq),
		BikeName:  req.BikeName,
		CreatedAt: now,
		Status:    "active",
	}
	bike := models.BikeState{
		BikeID:          ward.BikeID,
		WardID:          ward.WardID,
		GuardianID:      guardians[idx].GuardianID,
		BikeName:        req.BikeName,
		WardName:        req.Name,
		GuardianName:    guardians[idx].Name,
		Status:          "active",
		LastSeen:        now,
		CreatedAt:       now,
		CurrentLocation: defaultWardLocation,
	}

	withoutWard := append([]models.Ward{}, guardians[idx].Wards...)
	guardians[idx].Wards = append(guardians[idx].Wards, ward)
	if err := writeJSONFile(s.guardiansPath(), guardians); err != nil {
		return nil, nil, err
	}

	bikes, err := s.loadBikes()
	if err == nil {
		bikes = append(bikes, bike)
		err = writeJSONFile(s.bikesPath(), bikes)
	}
	if err != nil {
		// Roll the ward back so no ward is left without its bike row.
		guardians[idx].Wards = withoutWard
		if rbErr := writeJSONFile(s.guardiansPath(), guardians); rbErr != nil {
			return nil, nil, fmt.Errorf("bike write failed (%v), ward rollback failed: %w", err, rbErr)
		}
		return nil, nil, err
	}

	return &ward, &bike, nil
}

// --- daily ledgers ---

func (s *FileStore) dayPath(day string) string {
	return filepath.Join(s.dailyDir, day+".json")
}

func (s *FileStore) Append(ctx context.Context, day string, ev models.TelemetryEvent) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	var entries []models.TelemetryEvent
	if err := readJSONFile(s.dayPath(day), &entries); err != nil && !os.IsNotExist(err) {
		return err
	}
	entries = append(entries, ev)
	return writeJSONFile(s.dayPath(day), entries)
}

func (s *FileStore) Day(ctx context.Context, day string) ([]models.TelemetryEvent, error) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	var entries []models.TelemetryEvent
	if err := readJSONFile(s.dayPath(day), &entries); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) Dates(ctx context.Context) ([]string, error) {
	files, err := os.ReadDir(s.dailyDir)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(files))
	for _, f := range files {
		if name := f.Name(); strings.HasSuffix(name, ".json") {
			dates = append(dates, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(dates)
	return dates, nil
}
