// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

// configSchema validates a ProgramConfig document, the Store's
// analogue of the teacher's job-monitoring config schema.
var configSchema = `
{
  "type": "object",
  "properties": {
    "validate": {
      "description": "Parsed into the config; no decoder reads it, and codec documents are not schema-validated.",
      "type": "boolean"
    },
    "gateway": {
      "type": "object",
      "properties": {
        "addr": {
          "description": "Address the HTTP gateway listens on (e.g. ':8080').",
          "type": "string"
        },
        "disable-authentication": {
          "type": "boolean"
        },
        "session-max-age": {
          "description": "Parsable by time.ParseDuration(). Parsed into the config; the gateway does not read it.",
          "type": "string"
        }
      }
    },
    "housekeeping": {
      "type": "object",
      "properties": {
        "interval": {
          "description": "How often the resolver-cache sweep runs, as a time.ParseDuration() string.",
          "type": "string"
        },
        "grace": {
          "description": "Extra time a stale resolver cache may sit past its own cache_time before being evicted.",
          "type": "string"
        }
      }
    },
    "snapshot": {
      "type": "object",
      "properties": {
        "backend": {
          "type": "string",
          "enum": ["sqlite", "s3"]
        },
        "sqlite-path": {
          "type": "string"
        },
        "s3-bucket": {
          "type": "string"
        },
        "s3-region": {
          "type": "string"
        },
        "cache-max-memory": {
          "type": "integer"
        },
        "cache-ttl": {
          "type": "string"
        }
      },
      "required": ["backend"]
    },
    "notify": {
      "type": "object",
      "properties": {
        "addr": {
          "type": "string"
        },
        "subject": {
          "type": "string"
        }
      }
    },
    "resolvers": {
      "description": "Declarative resolver bindings. Parsed into the config; nothing attaches them to a Store.",
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "path": {
            "type": "string"
          },
          "class": {
            "type": "string",
            "enum": ["url", "directory"]
          },
          "args": {
            "type": "array"
          },
          "kwargs": {
            "type": "object"
          },
          "read-only": {
            "type": "boolean"
          },
          "cache-time-seconds": {
            "type": "integer"
          }
        },
        "required": ["path", "class"]
      }
    }
  }
}`
