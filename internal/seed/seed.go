package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/yukikurage/mo-task-monitor/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultData []byte

var (
	ErrEmptyUsername     = errors.New("seed: admin username cannot be empty")
	ErrDuplicateUsername = errors.New("seed: duplicate admin username")
	ErrDuplicateOrg      = errors.New("seed: duplicate organization name")
)

// Admin is a seeded administrator account. Its initial password equals the username.
type Admin struct {
	Username string `yaml:"username"`
	FullName string `yaml:"full_name"`
}

// Data is the reference data written on first initialization.
type Data struct {
	Admins        []Admin  `yaml:"admins"`
	Organizations []string `yaml:"organizations"`
}

// Default returns the embedded seed data.
func Default() (Data, error) {
	return Parse(defaultData)
}

// Load reads seed data from path, or the embedded defaults when path is empty.
func Load(path string) (Data, error) {
	if path == "" {
		return Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates YAML seed data.
func Parse(raw []byte) (Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return Data{}, fmt.Errorf("failed to parse seed data: %w", err)
	}
	if err := data.Validate(); err != nil {
		return Data{}, err
	}
	return data, nil
}

// Validate rejects blank or duplicate usernames and duplicate organization names.
func (d Data) Validate() error {
	usernames := make(map[string]struct{}, len(d.Admins))
	for _, admin := range d.Admins {
		if strings.TrimSpace(admin.Username) == "" {
			return ErrEmptyUsername
		}
		if _, exists := usernames[admin.Username]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateUsername, admin.Username)
		}
		usernames[admin.Username] = struct{}{}
	}

	names := make(map[string]struct{}, len(d.Organizations))
	for _, name := range d.Organizations {
		if _, exists := names[name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateOrg, name)
		}
		names[name] = struct{}{}
	}
	return nil
}

// Users hashes each admin's initial password and returns user records ready to insert.
func (d Data) Users(cost int) ([]models.User, error) {
	users := make([]models.User, 0, len(d.Admins))
	for _, admin := range d.Admins {
		hash, err := bcrypt.GenerateFromPassword([]byte(admin.Username), cost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password for %s: %w", admin.Username, err)
		}
		users = append(users, models.User{
			Username:     admin.Username,
			PasswordHash: string(hash),
			FullName:     admin.FullName,
			IsAdmin:      true,
		})
	}
	return users, nil
}

// OrganizationRecords returns organization records ready to insert.
func (d Data) OrganizationRecords() []models.Organization {
	orgs := make([]models.Organization, 0, len(d.Organizations))
	for _, name := range d.Organizations {
		orgs = append(orgs, models.Organization{Name: name})
	}
	return orgs
}

// Bundle is seed data with credentials already hashed, so backends never
// see plaintext passwords.
type Bundle struct {
	Users         []models.User
	Organizations []models.Organization
}

// Build hashes the seed data into a Bundle.
func (d Data) Build(cost int) (Bundle, error) {
	users, err := d.Users(cost)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Users:         users,
		Organizations: d.OrganizationRecords(),
	}, nil
}
