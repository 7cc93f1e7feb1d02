package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Morwran/yagpt"
)

var errEmptyYandexResponse = errors.New("yagpt returned no alternatives")

// YandexClient summarizes through YandexGPT Lite. The IAM token is issued
// once at construction from the OAuth token.
type YandexClient struct {
	gpt      yagpt.YaGPTFace
	iamToken string
}

func NewYandex(oauthToken, folderID string) (*YandexClient, error) {
	if oauthToken == "" || folderID == "" {
		return nil, errors.New("yandex provider needs YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID")
	}

	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("yandex iam: %w", err)
	}
	token, err := iam.Create()
	if err != nil {
		return nil, fmt.Errorf("yandex iam token: %w", err)
	}

	gpt, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("yagpt for folder %s: %w", folderID, err)
	}
	return &YandexClient{gpt: gpt, iamToken: token.IamToken}, nil
}

func (c *YandexClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	resp, err := c.gpt.CompletionWithCtx(ctx, c.iamToken, toYandexMessages(messages))
	if err != nil {
		return Response{}, fmt.Errorf("yagpt completion: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Response{}, errEmptyYandexResponse
	}

	return Response{
		Content:          resp.Alternatives[0].Message.Content,
		Model:            yagpt.YaModelLite,
		PromptTokens:     int(resp.Usage.InputTextTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}, nil
}

func toYandexMessages(messages []Message) []yagpt.Message {
	out := make([]yagpt.Message, len(messages))
	for i, m := range messages {
		out[i] = yagpt.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
