package npmemitter

// runtimeTS is written once at the top of every TypeScript SDK.
const runtimeTS = `// Code generated by specforge. DO NOT EDIT.

export interface ClientConfig {
  baseUrl: string;
  headers?: Record<string, string>;
  timeoutMs?: number;
  maxRetries?: number;
  baseDelayMs?: number;
  throwOnError?: boolean;
}

export interface ApiResult<T = unknown> {
  ok: boolean;
  status: number;
  data?: T;
  error?: unknown;
}

export interface CallOptions {
  query?: Record<string, unknown>;
  body?: unknown;
  headers?: Record<string, string>;
  overrides?: Record<string, string>;
  signal?: AbortSignal;
}

export class MissingParamError extends Error {
  readonly param: string;

  constructor(param: string) {
    super("missing path parameter " + JSON.stringify(param));
    this.name = "MissingParamError";
    this.param = param;
  }
}

export class ApiError extends Error {
  readonly result: ApiResult;

  constructor(result: ApiResult) {
    super("request failed with status " + result.status);
    this.name = "ApiError";
    this.result = result;
  }
}

const RETRY_STATUS = new Set([429, 500, 502, 503, 504]);
const NO_BODY = new Set(["GET", "HEAD"]);
const MUTATING = new Set(["POST", "PUT", "PATCH", "DELETE"]);

export function requireParam(name: string, value: unknown): void {
  if (value === undefined || value === null || value === "") {
    throw new MissingParamError(name);
  }
}

export function backoff(attempt: number, baseDelayMs: number, jitter: number = Math.random()): number {
  return baseDelayMs * Math.pow(2, attempt) + Math.floor((jitter * baseDelayMs) / 2);
}

export function parseRetryAfter(value: string | null, now: number = Date.now()): number | undefined {
  if (!value) return undefined;
  const v = value.trim();
  if (/^\d+$/.test(v)) return Number(v) * 1000;
  const at = Date.parse(v);
  if (Number.isNaN(at)) return undefined;
  return Math.max(0, at - now);
}

export function expandPath(template: string, params: Record<string, string | number> = {}): string {
  return template.replace(/\{([^{}]+)\}/g, (_match: string, name: string) => {
    const v = params[name];
    if (v === undefined || v === null || v === "") throw new MissingParamError(name);
    return encodeURIComponent(String(v));
  });
}

export function encodeQuery(query: Record<string, unknown> = {}): string {
  const parts: string[] = [];
  const add = (key: string, value: unknown) => {
    if (value === undefined || value === null) return;
    const s = typeof value === "object" ? JSON.stringify(value) : String(value);
    parts.push(encodeURIComponent(key) + "=" + encodeURIComponent(s));
  };
  for (const key of Object.keys(query).sort()) {
    const value = query[key];
    if (Array.isArray(value)) value.forEach((item) => add(key, item));
    else add(key, value);
  }
  return parts.join("&");
}

export function pickHeaders(opts: CallOptions, declared: string[]): Record<string, string> {
  const out: Record<string, string> = {};
  for (const name of declared) {
    const v = opts.headers?.[name];
    if (v !== undefined && v !== "") out[name] = v;
  }
  return { ...out, ...(opts.overrides ?? {}) };
}

function hasHeader(headers: Record<string, string>, name: string): boolean {
  const lower = name.toLowerCase();
  return Object.keys(headers).some((k) => k.toLowerCase() === lower);
}

function newIdempotencyKey(): string {
  const c = (globalThis as { crypto?: { randomUUID?: () => string } }).crypto;
  if (c && typeof c.randomUUID === "function") return c.randomUUID();
  return "idem-" + Date.now().toString(36) + "-" + Math.random().toString(36).slice(2);
}

function sleep(ms: number, signal?: AbortSignal): Promise<void> {
  return new Promise((resolve, reject) => {
    if (signal?.aborted) return reject(signal.reason);
    const onAbort = () => {
      clearTimeout(timer);
      reject(signal?.reason);
    };
    const timer = setTimeout(() => {
      signal?.removeEventListener("abort", onAbort);
      resolve();
    }, ms);
    signal?.addEventListener("abort", onAbort, { once: true });
  });
}

async function readData(res: Response): Promise<unknown> {
  const text = await res.text();
  if (!text.trim()) return undefined;
  try {
    return JSON.parse(text);
  } catch {
    return text;
  }
}

export class ApiClient {
  private readonly baseUrl: string;
  private readonly headers: Record<string, string>;
  private readonly timeoutMs: number;
  private readonly maxRetries: number;
  private readonly baseDelayMs: number;
  private readonly throwOnError: boolean;

  constructor(cfg: ClientConfig) {
    this.baseUrl = cfg.baseUrl.replace(/\/+$/, "");
    this.headers = { ...(cfg.headers ?? {}) };
    this.timeoutMs = cfg.timeoutMs ?? 30000;
    this.maxRetries = Math.max(0, cfg.maxRetries ?? 2);
    this.baseDelayMs = cfg.baseDelayMs ?? 300;
    this.throwOnError = cfg.throwOnError ?? false;
  }

  async request<T = unknown>(
    method: string,
    pathTemplate: string,
    pathParams: Record<string, string | number> = {},
    query: Record<string, unknown> = {},
    headers: Record<string, string> = {},
    body?: unknown,
    signal?: AbortSignal,
  ): Promise<ApiResult<T>> {
    const m = method.toUpperCase();
    let url = this.baseUrl + expandPath(pathTemplate, pathParams);
    const qs = encodeQuery(query);
    if (qs) url += (url.includes("?") ? "&" : "?") + qs;

    const h: Record<string, string> = { Accept: "application/json", ...this.headers, ...headers };
    let payload: string | undefined;
    if (!NO_BODY.has(m) && body !== undefined && body !== null) {
      payload = typeof body === "string" ? body : JSON.stringify(body);
      if (!hasHeader(h, "Content-Type")) h["Content-Type"] = "application/json";
    }
    if (MUTATING.has(m) && !hasHeader(h, "Idempotency-Key")) h["Idempotency-Key"] = newIdempotencyKey();

    let result: ApiResult<T> = { ok: false, status: 0 };
    for (let attempt = 0; ; attempt++) {
      let retryAfter: string | null = null;
      let transient = false;
      const ctrl = new AbortController();
      const onAbort = () => ctrl.abort(signal?.reason);
      signal?.addEventListener("abort", onAbort, { once: true });
      const timer = setTimeout(() => ctrl.abort(new Error("timeout")), this.timeoutMs);
      try {
        const res = await fetch(url, { method: m, headers: h, body: payload, signal: ctrl.signal });
        retryAfter = res.headers.get("Retry-After");
        const data = await readData(res);
        result = res.ok
          ? { ok: true, status: res.status, data: data as T }
          : { ok: false, status: res.status, error: data };
      } catch (err) {
        if (signal?.aborted) throw signal.reason ?? err;
        transient = true;
        result = { ok: false, status: 0, error: err };
      } finally {
        clearTimeout(timer);
        signal?.removeEventListener("abort", onAbort);
      }
      if (!(transient || RETRY_STATUS.has(result.status)) || attempt >= this.maxRetries) break;
      await sleep(parseRetryAfter(retryAfter) ?? backoff(attempt, this.baseDelayMs), signal);
    }
    if (!result.ok && this.throwOnError) throw new ApiError(result);
    return result;
  }
}
`
