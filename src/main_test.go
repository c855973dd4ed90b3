package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainCSV = `PassengerId,Survived,Pclass,Name,Sex,Age,SibSp,Parch,Ticket,Fare,Cabin,Embarked
1,0,3,"Braund, Mr. Owen Harris",male,22,1,0,A/5 21171,7.25,,S
2,1,1,"Cumings, Mrs. John Bradley (Florence Briggs Thayer)",female,38,1,0,PC 17599,71.2833,C85,C
3,1,3,"Heikkinen, Miss. Laina",female,26,0,0,STON/O2. 3101282,7.925,,S
4,1,1,"Futrelle, Mrs. Jacques Heath (Lily May Peel)",female,35,1,0,113803,53.1,C123,S
5,0,3,"Allen, Mr. William Henry",male,35,0,0,373450,8.05,,S
6,0,3,"Moran, Mr. James",male,,0,0,330877,8.4583,,Q
7,0,1,"McCarthy, Mr. Timothy J",male,54,0,0,17463,51.8625,E46,S
8,0,3,"Palsson, Master. Gosta Leonard",male,2,3,1,349909,21.075,,S
9,1,3,"Johnson, Mrs. Oscar W (Elisabeth Vilhelmina Berg)",female,27,0,2,347742,11.1333,,S
10,1,2,"Nasser, Mrs. Nicholas (Adele Achem)",female,14,1,0,237736,30.0708,,C
11,1,3,"Sandstrom, Miss. Marguerite Rut",female,4,1,1,PP 9549,16.7,G6,S
12,1,2,"Williams, Mr. Charles Eugene",male,,0,0,244373,13,,S
`

// setup 写入数据和配置文件, 返回配置目录和输出目录
func setup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.csv"), []byte(trainCSV), 0644))

	out := filepath.Join(dir, "out")
	cfg := map[string]any{
		"data_dir":   dir,
		"output_dir": out,
		"log_name":   filepath.Join(dir, "app.log"),
		"impute":     map[string]any{"n_splits": 3, "max_iter": 5, "seed": 7},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	confDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(confDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, jsonFile), data, 0644))
	return confDir, out
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestReportCommand(t *testing.T) {
	confDir, out := setup(t)
	output, err := execute(t, "--config", confDir, "report", "train")
	require.NoError(t, err)

	assert.Contains(t, output, "source: train, rows: 12")
	assert.Contains(t, output, "missing columns: Age,Cabin")
	assert.FileExists(t, filepath.Join(out, "summary.json"))
	assert.FileExists(t, filepath.Join(out, "correlation.png"))
	assert.FileExists(t, filepath.Join(out, "train_clean.csv"))
}

func TestReportCommandBadSchedule(t *testing.T) {
	confDir, _ := setup(t)
	_, err := execute(t, "--config", confDir, "report", "--schedule", "not a cron spec")
	require.Error(t, err)
}

func TestMCARCommand(t *testing.T) {
	confDir, _ := setup(t)
	output, err := execute(t, "--config", confDir, "mcar", "--column", "Age", "--alpha", "0.05")
	require.NoError(t, err)
	assert.Contains(t, output, "column: Age")
	assert.Contains(t, output, "dof: 20") // 12 + 10 - 2
	assert.Contains(t, output, "mcar(alpha=0.05)")

	_, err = execute(t, "--config", confDir, "mcar", "--column", "Fare")
	require.Error(t, err)

	_, err = execute(t, "--config", confDir, "mcar")
	require.Error(t, err)
}

func TestScoreImputeCommand(t *testing.T) {
	confDir, _ := setup(t)
	output, err := execute(t, "--config", confDir, "score-impute",
		"--target", "Age", "--columns", "Fare,Pclass,Age,SibSp", "--scorer", "neg_mean_squared_error")
	require.NoError(t, err)
	for _, name := range []string{
		"Original/Full Data", "SimpleImputer/mean", "SimpleImputer/median",
		"IterativeImputer/Ridge", "IterativeImputer/KNNRegressor",
	} {
		assert.Contains(t, output, name)
	}
}

func TestUnknownSource(t *testing.T) {
	confDir, _ := setup(t)
	_, err := execute(t, "--config", confDir, "report", "validation")
	require.Error(t, err)
	_, err = execute(t, "--config", confDir, "watch", "validation")
	require.Error(t, err)
}
