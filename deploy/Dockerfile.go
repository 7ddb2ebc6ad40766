FROM golang:1.24-alpine AS builder

# api | worker | notify-bridge
ARG SERVICE=api

WORKDIR /app

# Dependencies
COPY go.mod go.sum* ./
RUN go mod download

# Source
COPY . .

# Build the service plus the operator CLI
RUN CGO_ENABLED=0 GOOS=linux go build -o /app/service ./cmd/${SERVICE} \
 && CGO_ENABLED=0 GOOS=linux go build -o /app/wagerctl ./cmd/wagerctl

# Runtime
FROM alpine:3.19

RUN apk add --no-cache ca-certificates tzdata

WORKDIR /app

COPY --from=builder /app/service .
COPY --from=builder /app/wagerctl /usr/local/bin/wagerctl
COPY --from=builder /app/migrations ./migrations

ENV MIGRATIONS_DIR=/app/migrations

EXPOSE 3000

CMD ["./service"]
