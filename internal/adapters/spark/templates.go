package spark

import (
	"strings"
	"text/template"

	"github.com/goccy/go-json"
)

var funcs = template.FuncMap{
	"py": pyLiteral,
}

// pyLiteral renders v as a Python literal. JSON strings, numbers and lists
// of those are valid Python.
func pyLiteral(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

var setupTmpl = template.Must(template.New("setup").Funcs(funcs).Parse(strings.TrimSpace(`
import json
from pyspark.ml.evaluation import RegressionEvaluator
from pyspark.ml.feature import VectorAssembler
from pyspark.ml.regression import GBTRegressor, RandomForestRegressor

_elbow_assembler = VectorAssembler(inputCols={{py .Features}}, outputCol="features")

def _elbow_load(path):
    df = spark.read.csv(path, header=True, inferSchema=True)
    return _elbow_assembler.transform(df).select("features", {{py .Label}}).cache()

_elbow_train = _elbow_load({{py .TrainPath}})
_elbow_valid = _elbow_load({{py .ValidationPath}})
_elbow_full = _elbow_train.union(_elbow_valid).cache()
_elbow_eval = RegressionEvaluator(labelCol={{py .Label}}, predictionCol="prediction", metricName="mse")

def _elbow_model(param):
{{- if eq .Algorithm "rf"}}
    return RandomForestRegressor(featuresCol="features", labelCol={{py .Label}}, numTrees=param, seed={{.Seed}})
{{- else}}
    return GBTRegressor(featuresCol="features", labelCol={{py .Label}}, maxIter=param, stepSize={{.LearningRate}}, seed={{.Seed}})
{{- end}}

print(json.dumps({"train_rows": _elbow_train.count(), "validation_rows": _elbow_valid.count()}))
`)))

var evaluateTmpl = template.Must(template.New("evaluate").Funcs(funcs).Parse(strings.TrimSpace(`
_elbow_fitted = _elbow_model({{.Param}}).fit(_elbow_train)
print(json.dumps({"param": {{.Param}}, "mse": _elbow_eval.evaluate(_elbow_fitted.transform(_elbow_valid))}))
`)))

var fitTmpl = template.Must(template.New("fit").Funcs(funcs).Parse(strings.TrimSpace(`
_elbow_fitted = _elbow_model({{.Param}}).fit(_elbow_full)
_elbow_fitted.write().overwrite().save({{py .Path}})
print(json.dumps({"param": {{.Param}}, "path": {{py .Path}}}))
`)))

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
