package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"codedesk/internal/repository"

	"github.com/rs/zerolog"
)

const assistantPromptTemplate = "You are an expert coding assistant. The user is working with %[1]s code.\n\n" +
	"Current Code:\n```%[1]s\n%[2]s\n```\n\n" +
	"User Request: %[3]s\n\n" +
	"Please provide the corrected or improved code. Return ONLY the code without any explanations, " +
	"markdown formatting, or code block markers. Just the raw code that can be directly inserted into the editor."

var (
	fenceOpen  = regexp.MustCompile("(?m)^[ \\t]*```[\\w+#.-]*[ \\t]*\\r?\\n")
	fenceClose = regexp.MustCompile("(?m)^[ \\t]*```[ \\t]*\\r?$")
)

type AssistantService interface {
	Assist(ctx context.Context, userID, userPrompt, currentCode, language string) (string, error)
}

type assistantService struct {
	generator CodeGenerator
	userRepo  repository.UserRepository
	proOnly   bool
	logger    zerolog.Logger
}

// NewAssistantService creates the code assistant. With proOnly set, non-Pro callers get ErrProRequired.
func NewAssistantService(generator CodeGenerator, userRepo repository.UserRepository, proOnly bool, logger zerolog.Logger) AssistantService {
	return &assistantService{
		generator: generator,
		userRepo:  userRepo,
		proOnly:   proOnly,
		logger:    logger.With().Str("service", "AssistantService").Logger(),
	}
}

func (s *assistantService) Assist(ctx context.Context, userID, userPrompt, currentCode, language string) (string, error) {
	if s.proOnly {
		u, err := s.userRepo.GetUserByID(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("check pro status: %w", err)
		}
		if u == nil || !u.IsPro {
			return "", ErrProRequired
		}
	}

	prompt := fmt.Sprintf(assistantPromptTemplate, language, currentCode, userPrompt)
	out, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("language", language).Msg("Code generation failed")
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	code := StripCodeFences(out)
	if code == "" {
		s.logger.Warn().Str("user_id", userID).Str("language", language).Msg("Model returned no code")
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return code, nil
}

// StripCodeFences removes markdown fence lines the model adds despite being asked not to.
func StripCodeFences(s string) string {
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
