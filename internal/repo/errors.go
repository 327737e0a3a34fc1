package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запуск с таким ID уже сохранён.
	ErrAlreadyExists = errors.New("already exists")
)
