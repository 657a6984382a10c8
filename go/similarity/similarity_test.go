package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeMixedChineseEnglish(t *testing.T) {
	var tokens = Tokenize("梯度下降 Gradient Descent, 学习率 0.01!")
	require.NotEmpty(t, tokens)
	require.Contains(t, tokens, "gradient")
	require.Contains(t, tokens, "descent")
	require.Contains(t, tokens, "0.01")
	// Punctuation-only segments are dropped.
	require.NotContains(t, tokens, ",")
	require.NotContains(t, tokens, "!")
	// Lowercased.
	require.NotContains(t, tokens, "Gradient")
}

func TestCosineIdenticalTexts(t *testing.T) {
	var text = "梯度下降是一种优化算法，沿负梯度方向更新参数。"
	require.InDelta(t, 1.0, Cosine(text, text), 1e-9)
}

func TestCosineDisjointTexts(t *testing.T) {
	require.Zero(t, Cosine("apple banana cherry", "汽车 飞机 轮船"))
}

func TestCosineEmptyText(t *testing.T) {
	require.Zero(t, Cosine("", "content"))
	require.Zero(t, Cosine("content", "  ... "))
}

func TestCosineCaseInsensitive(t *testing.T) {
	require.InDelta(t, 1.0, Cosine("Gradient Descent", "gradient descent"), 1e-9)
}

func TestCosinePartialOverlap(t *testing.T) {
	var sim = Cosine("梯度下降 优化 算法", "梯度下降 神经网络")
	require.Greater(t, sim, 0.0)
	require.Less(t, sim, 1.0)
}

func TestScoresPreserveOrder(t *testing.T) {
	var comprehensive = "梯度下降是优化算法"
	var scores = Scores(comprehensive, []string{
		"梯度下降是优化算法",
		"完全无关的内容 totally unrelated words",
	})
	require.Len(t, scores, 2)
	require.Greater(t, scores[0], scores[1])
	for _, s := range scores {
		require.GreaterOrEqual(t, s, 0.0)
		require.LessOrEqual(t, s, 1.0)
	}
}

func TestMean(t *testing.T) {
	require.Zero(t, Mean(nil))
	require.InDelta(t, 0.5, Mean([]float64{0.25, 0.75}), 1e-9)
}
