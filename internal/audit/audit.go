// Package audit реализует журналирование выполненных инвалидаций кеша.
// Использует паттерн Observer для уведомления различных подписчиков
// о событиях очистки кеша.
package audit

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/levinOo/go-cache-project/internal/models"
)

// Observer определяет интерфейс наблюдателя для системы аудита.
// Позволяет регистрировать подписчиков и уведомлять их о событиях.
type Observer interface {
	// RegisterClient добавляет нового подписчика для получения уведомлений.
	RegisterClient(Consumer)

	// NotifyClient отправляет уведомление всем зарегистрированным подписчикам.
	NotifyClient()
}

// Consumer определяет интерфейс потребителя событий аудита.
// Реализации этого интерфейса обрабатывают события различными способами
// (запись в файл, отправка по HTTP и т.д.).
type Consumer interface {
	// Update обрабатывает событие аудита выполненной инвалидации.
	Update(data models.Data)
}

// Auditer координирует отправку событий аудита зарегистрированным подписчикам.
type Auditer struct {
	clients []Consumer
	message models.Data
}

// RegisterClient добавляет нового подписчика в список получателей уведомлений.
func (a *Auditer) RegisterClient(o Consumer) {
	a.clients = append(a.clients, o)
}

// NotifyClient отправляет текущее сообщение всем зарегистрированным подписчикам.
func (a *Auditer) NotifyClient() {
	for _, client := range a.clients {
		client.Update(a.message)
	}
}

// SetMessage устанавливает сообщение для отправки подписчикам.
func (a *Auditer) SetMessage(data models.Data) {
	a.message = data
}

// FileAuditer записывает события аудита в JSON файл.
type FileAuditer struct {
	path string
}

// NewFileAuditer создаёт новый экземпляр FileAuditer для записи в указанный файл.
func NewFileAuditer(path string) *FileAuditer {
	return &FileAuditer{
		path: path,
	}
}

// Update добавляет новое событие аудита в файл.
// Читает существующие события, добавляет новое и перезаписывает файл.
// Если путь пустой, операция пропускается.
func (a *FileAuditer) Update(data models.Data) {
	if a.path == "" {
		return
	}

	var dataList models.DataList
	fileData, err := os.ReadFile(a.path)
	if err != nil && !os.IsNotExist(err) {
		log.Printf("failed to read file %s: %v", a.path, err)
		return
	}

	if len(fileData) > 0 {
		if err := json.Unmarshal(fileData, &dataList); err != nil {
			log.Printf("json.Unmarshal error: %v", err)
			return
		}
	}

	dataList.Events = append(dataList.Events, data)

	jsonData, err := json.Marshal(&dataList)
	if err != nil {
		log.Printf("json.Marshal error: %v", err)
		return
	}

	err = os.WriteFile(a.path, jsonData, 0644)
	if err != nil {
		log.Printf("write file error: %v", err)
		return
	}
}

// URLAuditer отправляет события аудита на внешний HTTP endpoint.
type URLAuditer struct {
	url string
}

// NewURLAuditer создаёт новый экземпляр URLAuditer для отправки на указанный URL.
func NewURLAuditer(url string) *URLAuditer {
	return &URLAuditer{
		url: url,
	}
}

// Update отправляет событие аудита на настроенный HTTP endpoint методом POST.
// Если URL пустой, операция пропускается.
func (a *URLAuditer) Update(data models.Data) {
	if a.url == "" {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("json.marshal error: %v", err)
		return
	}

	resp, err := http.Post(a.url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		log.Printf("HTTP POST request error: %v", err)
		return
	}
	defer resp.Body.Close()
}

// NewInvalidationEvent создаёт и отправляет событие аудита выполненной инвалидации.
// Настраивает подписчиков для файла и URL и уведомляет их.
//
// Параметры:
//
//	pattern: шаблон, по которому выполнялась инвалидация
//	trigger: причина инвалидации
//	prefixes: очищенные префиксы ключей
//	path: путь к файлу аудита (пустая строка для отключения)
//	url: URL для отправки событий (пустая строка для отключения)
func NewInvalidationEvent(pattern, trigger string, prefixes []string, path, url string) {
	data := models.Data{
		TS:       time.Now().Unix(),
		Pattern:  pattern,
		Trigger:  trigger,
		Prefixes: prefixes,
	}

	auditer := &Auditer{}
	auditer.RegisterClient(NewFileAuditer(path))
	auditer.RegisterClient(NewURLAuditer(url))

	auditer.SetMessage(data)
	auditer.NotifyClient()
}
