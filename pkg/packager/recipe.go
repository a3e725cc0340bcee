package packager

import (
	"bytes"
	"text/template"
)

// recipeTemplate is the Dockerfile shape for a packaged inference server:
// a slim Python base, the rendered dependency list, the model, the
// operator's inference script, and the core-authored entrypoint copied
// in, and a wide EXPOSE range so the negotiated port can land anywhere
// pkg/portalloc picked. entrypoint.py (not inference_script.py) is CMD'd
// so the hosted-model download in entrypointScript always runs first.
var recipeTemplate = template.Must(template.New("dockerfile").Parse(`FROM python:3.10-slim

WORKDIR /app
ENV PYTHONPATH=/app

RUN apt-get update && apt-get install -y curl && rm -rf /var/lib/apt/lists/*

COPY requirements.txt /app/requirements.txt
RUN pip install --no-cache-dir -r requirements.txt

COPY model /app/model
COPY inference_script.py /app/inference_script.py
COPY entrypoint.py /app/entrypoint.py
RUN chmod +x /app/entrypoint.py

ENV MODEL_DIR=/app/model
ENV PORT={{.DefaultPort}}

EXPOSE {{.PortRangeStart}}-{{.PortRangeEnd}}

CMD ["python3", "/app/entrypoint.py"]
`))

// entrypointScript is the core-authored launcher CMD'd by every packaged
// image. It is never supplied by the operator: it resolves the hosted
// model (if any) before handing off to the operator's opaque inference
// script, matching the original deployer's "the entrypoint will handle
// the model download" contract (deployer.py's _run_docker_image comment).
// hf_model_link.txt is written by stageModel only for hosted refs; a
// local model has no link file and the download step is skipped.
const entrypointScript = `#!/usr/bin/env python3
import os
import sys

MODEL_DIR = os.environ.get("MODEL_DIR", "/app/model")
LINK_FILE = os.path.join(MODEL_DIR, "hf_model_link.txt")

if os.path.isfile(LINK_FILE):
    with open(LINK_FILE) as f:
        repo_id = f.read().strip()
    from huggingface_hub import snapshot_download
    snapshot_download(repo_id=repo_id, token=os.environ.get("HF_TOKEN") or None, local_dir=MODEL_DIR)
    os.remove(LINK_FILE)

os.execv(sys.executable, [sys.executable, "/app/inference_script.py"])
`

// requirements mirrors the original deployer's ALL_REQUIREMENTS pin list.
const requirements = `torch
transformers
fastapi
uvicorn
pydantic
sentencepiece
accelerate
protobuf
safetensors
huggingface_hub
`

// recipeParams fills recipeTemplate.
type recipeParams struct {
	DefaultPort    int
	PortRangeStart int
	PortRangeEnd   int
}

func renderRecipe(p recipeParams) ([]byte, error) {
	var buf bytes.Buffer
	if err := recipeTemplate.Execute(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
