// Package service реализует бизнес-логику агента: оркестрацию диалога с LLM,
// повторы при исчерпании квоты и операции над кошельком пользователя.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/walleai/walle-agent/internal/gemini"
	"github.com/walleai/walle-agent/internal/model"
	"github.com/walleai/walle-agent/internal/prompt"
	"github.com/walleai/walle-agent/internal/repository"
)

// BusyMessage возвращается пользователю, когда все повторы исчерпаны.
const BusyMessage = "Walle is overloaded right now. Please try again in a minute."

// LLM описывает контракт языковой модели для оркестратора.
type LLM interface {
	GenerateContent(ctx context.Context, systemInstruction string, turns []gemini.Message, search gemini.SearchFunc) (string, error)
}

// Searcher выполняет веб-поиск по запросу инструмента. Ошибки провайдера
// сворачиваются в текст результата.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// RetryPolicy задаёт поведение повторов при ответе rate limit:
// после каждой неудачной попытки (включая последнюю) оркестратор ждёт
// BaseWait*(номер попытки), затем либо повторяет, либо сдаётся.
type RetryPolicy struct {
	MaxAttempts int
	BaseWait    time.Duration
	// Sleep подменяется в тестах, nil означает time.Sleep.
	Sleep func(time.Duration)
}

// DefaultRetryPolicy — три попытки с ожиданием 10, 20 и 30 секунд.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseWait: 10 * time.Second}
}

func (p RetryPolicy) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

// BenefitReminder — одно напоминание об истекающем бенефите из ответа LLM.
type BenefitReminder struct {
	Card        string `json:"card"`
	Benefit     string `json:"benefit"`
	Deadline    string `json:"deadline"`
	Description string `json:"description"`
}

// Service связывает хранилище карт, LLM и поисковый инструмент.
// Профили кэшируются в памяти на время жизни процесса; любая мутация
// кошелька инвалидирует кэш этого пользователя.
type Service struct {
	store    repository.CardStore
	llm      LLM
	searcher Searcher
	logger   *zap.Logger
	retry    RetryPolicy
	now      func() time.Time

	mu       sync.Mutex
	profiles map[string]*model.UserProfile
}

// NewService создаёт сервис с политикой повторов по умолчанию.
func NewService(store repository.CardStore, llm LLM, searcher Searcher, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		llm:      llm,
		searcher: searcher,
		logger:   logger,
		retry:    DefaultRetryPolicy(),
		now:      time.Now,
		profiles: make(map[string]*model.UserProfile),
	}
}

// SetRetryPolicy заменяет политику повторов. Используется в тестах.
func (s *Service) SetRetryPolicy(p RetryPolicy) {
	s.retry = p
}

// SetNow заменяет источник текущего времени. Используется в тестах.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// profile возвращает профиль пользователя из кэша либо из хранилища.
func (s *Service) profile(ctx context.Context, userID string) (*model.UserProfile, error) {
	s.mu.Lock()
	cached, ok := s.profiles[userID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	p, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.profiles[userID] = p
	s.mu.Unlock()
	return p, nil
}

// invalidate сбрасывает кэш профиля после мутации кошелька.
func (s *Service) invalidate(userID string) {
	s.mu.Lock()
	delete(s.profiles, userID)
	s.mu.Unlock()
}

// Respond отвечает на реплику пользователя. Ошибки не возвращаются наружу:
// недоступность хранилища деградирует до пустого кошелька, ошибки LLM
// сворачиваются в текст ответа.
func (s *Service) Respond(ctx context.Context, userID, message string, history []gemini.Message, lang string) string {
	p, err := s.profile(ctx, userID)
	if err != nil {
		s.logger.Warn("card store unavailable, responding with empty wallet",
			zap.String("user_id", userID), zap.Error(err))
		p = model.NewUserProfile(userID)
	}

	today := s.now()
	instruction := prompt.BuildSystemInstruction(p.Summary(), today, prompt.CountRecentOpenings(p, today), lang)

	turns := make([]gemini.Message, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, gemini.Message{Role: "user", Text: message})

	reply, err := s.generateWithRetry(ctx, instruction, turns, s.searcher.Search)
	if err != nil {
		if errors.Is(err, gemini.ErrRateLimited) {
			return BusyMessage
		}
		s.logger.Error("llm request failed", zap.String("user_id", userID), zap.Error(err))
		return fmt.Sprintf("Error: %v", err)
	}
	return reply
}

// generateWithRetry повторяет запрос к LLM при исчерпании квоты. Ожидание
// растёт линейно и выполняется после каждой неудачной попытки.
func (s *Service) generateWithRetry(ctx context.Context, instruction string, turns []gemini.Message, search gemini.SearchFunc) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		reply, err := s.llm.GenerateContent(ctx, instruction, turns, search)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, gemini.ErrRateLimited) {
			return "", err
		}

		lastErr = err
		wait := s.retry.BaseWait * time.Duration(attempt)
		s.logger.Warn("llm rate limited, backing off",
			zap.Int("attempt", attempt), zap.Duration("wait", wait))
		s.retry.sleep(wait)
	}
	return "", lastErr
}

// GetWallet возвращает кошелёк пользователя.
func (s *Service) GetWallet(ctx context.Context, userID string) (*model.UserProfile, error) {
	return s.profile(ctx, userID)
}

// AddCard добавляет карту в конец кошелька. Пустому идентификатору
// присваивается новый UUID.
func (s *Service) AddCard(ctx context.Context, userID string, card model.CreditCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	if err := s.store.Save(ctx, userID, card); err != nil {
		return fmt.Errorf("save card: %w", err)
	}
	s.invalidate(userID)
	return nil
}

// UpdateCard перезаписывает карту по позиции, сохраняя её прежний
// идентификатор.
func (s *Service) UpdateCard(ctx context.Context, userID string, index int, card model.CreditCard) error {
	if card.ID == "" {
		p, err := s.profile(ctx, userID)
		if err != nil {
			return err
		}
		if index >= 0 && index < len(p.Cards) {
			card.ID = p.Cards[index].ID
		}
	}
	if err := s.store.Update(ctx, userID, index, card); err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	s.invalidate(userID)
	return nil
}

// DeleteCard удаляет карту по позиции.
func (s *Service) DeleteCard(ctx context.Context, userID string, index int) error {
	if err := s.store.Delete(ctx, userID, index); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	s.invalidate(userID)
	return nil
}

// ResetDemo очищает кошелёк пользователя и заполняет его демонстрационными
// картами с бенефитами.
func (s *Service) ResetDemo(ctx context.Context, userID string) (*model.UserProfile, error) {
	s.invalidate(userID)

	current, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}

	// Удаление нулевой позиции сдвигает остальные строки на место.
	for range current.Cards {
		if err := s.store.Delete(ctx, userID, 0); err != nil {
			return nil, fmt.Errorf("clear wallet: %w", err)
		}
	}

	demo := model.DemoProfile(userID)
	for i := range demo.Cards {
		demo.Cards[i].ID = uuid.NewString()
		if err := s.store.Save(ctx, userID, demo.Cards[i]); err != nil {
			return nil, fmt.Errorf("save demo card: %w", err)
		}
	}

	s.mu.Lock()
	s.profiles[userID] = demo
	s.mu.Unlock()
	return demo, nil
}

// AnalyzeBenefits запрашивает у LLM список истекающих бенефитов кошелька.
// Любая ошибка модели или разбора сворачивается в пустой список: напоминания
// вспомогательны и не должны ломать основной сценарий.
func (s *Service) AnalyzeBenefits(ctx context.Context, userID, lang string) []BenefitReminder {
	p, err := s.profile(ctx, userID)
	if err != nil {
		s.logger.Warn("card store unavailable, skipping benefit analysis",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if len(p.Cards) == 0 {
		return nil
	}

	request := prompt.BuildBenefitAnalysisPrompt(p.Summary(), s.now(), lang)
	turns := []gemini.Message{{Role: "user", Text: request}}

	raw, err := s.generateWithRetry(ctx, "", turns, nil)
	if err != nil {
		s.logger.Warn("benefit analysis failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	var reminders []BenefitReminder
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &reminders); err != nil {
		s.logger.Warn("benefit analysis returned malformed json",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return reminders
}

// stripCodeFence снимает обёртку ```json ... ```, если модель всё же
// вернула markdown вопреки инструкции.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
