package backend

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is a registered user. The password is stored as bcrypt hash and never serialized.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Email    string `gorm:"size:120;uniqueIndex;not null" json:"email"`
	Password string `gorm:"size:80;not null" json:"-"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}

// BeforeCreate hashes the clear text password
func (u *User) BeforeCreate(tx *gorm.DB) error {
	return u.hashPassword(tx)
}

// BeforeUpdate hashes the password only if the update selects it. Otherwise
// Password holds the stored hash.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	for _, column := range tx.Statement.Selects {
		if column == "password" || column == "Password" {
			return u.hashPassword(tx)
		}
	}
	return nil
}

func (u *User) hashPassword(tx *gorm.DB) error {
	if u.Password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("cannot hash password: %w", err)
	}
	tx.Statement.SetColumn("Password", string(hash))
	return nil
}

// CheckPassword returns true if password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (u *User) assign(values map[string]interface{}) {
	if v, ok := values["email"].(string); ok {
		u.Email = v
	}
	if v, ok := values["password"].(string); ok {
		u.Password = v
	}
	if v, ok := values["is_active"].(bool); ok {
		u.IsActive = v
	}
}

// Person is a character of the galaxy. All attributes are free text, "unknown" is a valid value.
type Person struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"size:250;not null" json:"name"`
	BirthYear string `gorm:"size:250;not null" json:"birth_year"`
	Gender    string `gorm:"size:250;not null" json:"gender"`
	Height    string `gorm:"size:250;not null" json:"height"`
	HairColor string `gorm:"size:250;not null" json:"hair_color"`
}

// TableName overrides the table name
func (Person) TableName() string {
	return "people"
}

func (p *Person) assign(values map[string]interface{}) {
	if v, ok := values["name"].(string); ok {
		p.Name = v
	}
	if v, ok := values["birth_year"].(string); ok {
		p.BirthYear = v
	}
	if v, ok := values["gender"].(string); ok {
		p.Gender = v
	}
	if v, ok := values["height"].(string); ok {
		p.Height = v
	}
	if v, ok := values["hair_color"].(string); ok {
		p.HairColor = v
	}
}

// Planet is a planet of the galaxy
type Planet struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"size:250;not null" json:"name"`
	Climate    string `gorm:"size:250;not null" json:"climate"`
	Terrain    string `gorm:"size:250;not null" json:"terrain"`
	Population string `gorm:"size:250;not null" json:"population"`
}

func (p *Planet) assign(values map[string]interface{}) {
	if v, ok := values["name"].(string); ok {
		p.Name = v
	}
	if v, ok := values["climate"].(string); ok {
		p.Climate = v
	}
	if v, ok := values["terrain"].(string); ok {
		p.Terrain = v
	}
	if v, ok := values["population"].(string); ok {
		p.Population = v
	}
}

// FavoritePlanet marks a planet as favorite of a user. A user can favor a planet only once.
type FavoritePlanet struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"not null;uniqueIndex:idx_favorite_planets_user_planet" json:"user_id"`
	PlanetID uint   `gorm:"not null;uniqueIndex:idx_favorite_planets_user_planet" json:"planet_id"`
	User     User   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Planet   Planet `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// FavoritePerson marks a person as favorite of a user. A user can favor a person only once.
type FavoritePerson struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UserID   uint   `gorm:"not null;uniqueIndex:idx_favorite_people_user_people" json:"user_id"`
	PeopleID uint   `gorm:"column:people_id;not null;uniqueIndex:idx_favorite_people_user_people" json:"people_id"`
	User     User   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	People   Person `gorm:"foreignKey:PeopleID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName overrides the table name
func (FavoritePerson) TableName() string {
	return "favorite_people"
}

// Models returns all models in dependency order, as needed for AutoMigrate
func Models() []interface{} {
	return []interface{}{&User{}, &Person{}, &Planet{}, &FavoritePlanet{}, &FavoritePerson{}}
}
