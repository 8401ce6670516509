package repository

import (
	"errors"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
)

var (
	// ErrDuplicateEmail возвращается при попытке создать пользователя с уже занятой почтой.
	ErrDuplicateEmail = errors.New("duplicate email")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrHospitalNotFound возвращается, если у пользователя нет профиля больницы.
	ErrHospitalNotFound = errors.New("hospital not found")
	// ErrUserAlreadyHasHospital возвращается при попытке создать второй профиль больницы.
	ErrUserAlreadyHasHospital = errors.New("user already has hospital")
	// ErrNotFound возвращается, если запрос, предложение, совпадение или сообщение не найдены.
	ErrNotFound = errors.New("not found")
	// ErrStatusChanged возвращается, если статус записи изменился конкурентно.
	ErrStatusChanged = errors.New("status changed concurrently")
	// ErrStorageUnavailable возвращается при недоступности хранилища.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

func coordinatesFrom(lat, lng *float64) *model.Coordinates {
	if lat == nil || lng == nil {
		return nil
	}
	return &model.Coordinates{Latitude: *lat, Longitude: *lng}
}

func coordinateArgs(c *model.Coordinates) (*float64, *float64) {
	if c == nil {
		return nil, nil
	}
	lat, lng := c.Latitude, c.Longitude
	return &lat, &lng
}
