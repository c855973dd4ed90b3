package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"TitanicEDA/src/config"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const trainCSV = `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Ticket,Fare,Cabin,Embarked
1,0,3,"Braund, Mr. Owen Harris",male,22,1,0,A/5 21171,7.25,,S
2,1,1,"Cumings, Mrs. John Bradley (Florence Briggs Thayer)",female,38,1,0,PC 17599,71.2833,C85,C
3,1,3,"Heikkinen, Miss. Laina",female,26,0,0,STON/O2. 3101282,7.925,,S
4,1,1,"Futrelle, Mrs. Jacques Heath (Lily May Peel)",female,35,1,0,113803,53.1,C123,S
5,0,3,"Allen, Mr. William Henry",male,35,0,0,373450,8.05,,S
6,0,3,"Moran, Mr. James",male,,0,0,330877,8.4583,,Q
7,0,1,"McCarthy, Mr. Timothy J",male,54,0,0,17463,51.8625,E46,S
8,1,2,"Williams, Mr. Charles Eugene",male,,0,0,244373,13,,S
9,1,1,"Icard, Miss. Amelie",female,38,0,0,113572,80,B28,
`

const testCSV = `PassengerId,Pclass,Name,Sex,Age,SibSp,Parch,Ticket,Fare,Cabin,Embarked
892,3,"Kelly, Mr. James",male,34.5,0,0,330911,7.8292,,Q
893,3,"Wilkes, Mrs. James (Ellen Needs)",female,47,1,0,363272,7,,S
`

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.csv"), []byte(trainCSV), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.csv"), []byte(testCSV), 0644))
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.OutputDir = filepath.Join(dir, "out")
	return cfg
}

func TestRunTrain(t *testing.T) {
	cfg := newConfig(t)
	sum, err := NewRunner(cfg, nil).Run(context.Background(), " Train ")
	require.NoError(t, err)

	assert.Equal(t, "train", sum.Source)
	_, err = uuid.Parse(sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, 9, sum.Rows)
	assert.Equal(t, []string{"Age", "Cabin", "Embarked"}, sum.MissingColumns)

	require.Len(t, sum.MCAR, 3)
	for _, m := range sum.MCAR {
		require.NotNil(t, m.P, m.Column)
		assert.Equal(t, *m.P > cfg.Report.Alpha, m.MCAR, m.Column)
	}
	assert.Equal(t, "Age", sum.MCAR[0].Column)
	assert.InDelta(t, 14, sum.MCAR[0].DoF, 1e-9) // 9 + 7 - 2

	require.Contains(t, sum.TargetMeans, "Pclass")
	pclass := sum.TargetMeans["Pclass"]
	require.Len(t, pclass, 3)
	assert.Equal(t, "1", pclass[0].Group)
	assert.Equal(t, 4, pclass[0].Count)
	assert.InDelta(t, 0.75, *pclass[0].Mean, 1e-9)
	assert.Contains(t, sum.TargetMeans, "Title")

	for _, name := range []string{
		"missing_counts.png", "missing_matrix.png", "value_counts_Sex.png", "value_counts_Embarked.png",
		"value_counts_Pclass.png", "value_counts_Title.png", "correlation.png", "train_clean.xlsx", "train_clean.csv",
	} {
		assert.Contains(t, sum.Files, name)
		assert.FileExists(t, filepath.Join(cfg.OutputDir, name))
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "train_clean.csv"))
	require.NoError(t, err)
	header := strings.Split(strings.SplitN(string(data), "\n", 2)[0], ",")
	assert.Equal(t, "PassengerId", header[0])
	assert.Contains(t, header, "Sex_Code")
	assert.Contains(t, header, "Embarked_Code")
	assert.Contains(t, header, "Title")
	assert.NotContains(t, header, "Ticket")
	assert.NotContains(t, header, "Cabin")

	read, err := ReadSummary(cfg.OutputDir)
	require.NoError(t, err)
	if diff := cmp.Diff(sum, read); diff != "" {
		t.Errorf("summary.json mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWithoutTarget(t *testing.T) {
	cfg := newConfig(t)
	sum, err := NewRunner(cfg, nil).Run(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Rows)
	assert.Equal(t, []string{"Cabin"}, sum.MissingColumns)
	assert.Empty(t, sum.MCAR)
	assert.Empty(t, sum.TargetMeans)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "test_clean.xlsx"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, SummaryFile))
}

func TestRunUnknownSource(t *testing.T) {
	cfg := newConfig(t)
	_, err := NewRunner(cfg, nil).Run(context.Background(), "validation")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, SummaryFile))
}

func TestRunCanceled(t *testing.T) {
	cfg := newConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(cfg, nil).Run(ctx, "train")
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, SummaryFile))
}
