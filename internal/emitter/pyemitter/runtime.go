package pyemitter

// runtimePy is written once at the top of every Python SDK. It needs only
// the standard library.
const runtimePy = `# Code generated by specforge. DO NOT EDIT.
from __future__ import annotations

import email.utils
import itertools
import json
import random
import re
import time
import urllib.error
import urllib.parse
import urllib.request
import uuid
from dataclasses import dataclass
from typing import Any, Dict, List, Mapping, Optional

RETRY_STATUS = {429, 500, 502, 503, 504}
NO_BODY = {"GET", "HEAD"}
MUTATING = {"POST", "PUT", "PATCH", "DELETE"}
_PLACEHOLDER = re.compile(r"\{([^{}]+)\}")


class MissingParamError(ValueError):
    def __init__(self, name: str) -> None:
        super().__init__("missing path parameter %r" % name)
        self.param = name


@dataclass
class ApiResult:
    ok: bool
    status: int
    data: Any = None
    error: Any = None


class ApiError(Exception):
    def __init__(self, result: ApiResult) -> None:
        super().__init__("request failed with status %d" % result.status)
        self.result = result


def require_param(name: str, value: Any) -> None:
    if value is None or value == "":
        raise MissingParamError(name)


def backoff(attempt: int, base_delay: float, jitter: Optional[float] = None) -> float:
    if jitter is None:
        jitter = random.random()
    return base_delay * (2 ** attempt) + jitter * base_delay / 2


def parse_retry_after(value: Optional[str], now: Optional[float] = None) -> Optional[float]:
    if not value:
        return None
    v = value.strip()
    if v.isdigit():
        return float(v)
    try:
        when = email.utils.parsedate_to_datetime(v)
    except (TypeError, ValueError):
        return None
    if when is None:
        return None
    current = time.time() if now is None else now
    return max(0.0, when.timestamp() - current)


def expand_path(template: str, params: Optional[Mapping[str, Any]] = None) -> str:
    params = params or {}

    def sub(match: "re.Match[str]") -> str:
        name = match.group(1)
        value = params.get(name)
        if value is None or value == "":
            raise MissingParamError(name)
        return urllib.parse.quote(str(value), safe="")

    return _PLACEHOLDER.sub(sub, template)


def _query_value(value: Any) -> str:
    if isinstance(value, bool):
        return "true" if value else "false"
    if isinstance(value, (dict, list, tuple)):
        return json.dumps(value, separators=(",", ":"))
    return str(value)


def encode_query(query: Optional[Mapping[str, Any]] = None) -> str:
    pairs: List[tuple] = []
    for key in sorted((query or {}).keys()):
        value = query[key]
        items = value if isinstance(value, (list, tuple)) else [value]
        for item in items:
            if item is not None:
                pairs.append((key, _query_value(item)))
    return urllib.parse.urlencode(pairs, quote_via=urllib.parse.quote)


def pick_headers(
    headers: Optional[Mapping[str, str]], overrides: Optional[Mapping[str, str]], declared: List[str]
) -> Dict[str, str]:
    out: Dict[str, str] = {}
    for name in declared:
        value = (headers or {}).get(name)
        if value:
            out[name] = value
    out.update(overrides or {})
    return out


def _has_header(headers: Mapping[str, str], name: str) -> bool:
    return any(k.lower() == name.lower() for k in headers)


def _decode(raw: bytes) -> Any:
    text = raw.decode("utf-8", errors="replace")
    if not text.strip():
        return None
    try:
        return json.loads(text)
    except ValueError:
        return text


class ApiClient:
    def __init__(
        self,
        base_url: str,
        headers: Optional[Mapping[str, str]] = None,
        timeout: float = 30.0,
        max_retries: int = 2,
        base_delay: float = 0.3,
        throw_on_error: bool = False,
    ) -> None:
        self.base_url = base_url.rstrip("/")
        self.headers = dict(headers or {})
        self.timeout = timeout
        self.max_retries = max(0, max_retries)
        self.base_delay = base_delay
        self.throw_on_error = throw_on_error

    def request(
        self,
        method: str,
        path_template: str,
        path_params: Optional[Mapping[str, Any]] = None,
        query: Optional[Mapping[str, Any]] = None,
        headers: Optional[Mapping[str, str]] = None,
        body: Any = None,
    ) -> ApiResult:
        m = method.upper()
        url = self.base_url + expand_path(path_template, path_params)
        qs = encode_query(query)
        if qs:
            url += ("&" if "?" in url else "?") + qs

        hdrs: Dict[str, str] = {"Accept": "application/json"}
        hdrs.update(self.headers)
        hdrs.update(headers or {})
        payload: Optional[bytes] = None
        if m not in NO_BODY and body is not None:
            payload = body.encode("utf-8") if isinstance(body, str) else json.dumps(body).encode("utf-8")
            if not _has_header(hdrs, "Content-Type"):
                hdrs["Content-Type"] = "application/json"
        if m in MUTATING and not _has_header(hdrs, "Idempotency-Key"):
            hdrs["Idempotency-Key"] = str(uuid.uuid4())

        result = ApiResult(ok=False, status=0)
        for attempt in itertools.count():
            retry_after: Optional[str] = None
            transient = False
            req = urllib.request.Request(url, data=payload, method=m, headers=hdrs)
            try:
                with urllib.request.urlopen(req, timeout=self.timeout) as resp:
                    result = ApiResult(ok=True, status=resp.status, data=_decode(resp.read()))
            except urllib.error.HTTPError as err:
                retry_after = err.headers.get("Retry-After") if err.headers else None
                result = ApiResult(ok=False, status=err.code, error=_decode(err.read()))
            except (urllib.error.URLError, TimeoutError, OSError) as err:
                transient = True
                result = ApiResult(ok=False, status=0, error=err)
            if not (transient or result.status in RETRY_STATUS) or attempt >= self.max_retries:
                break
            wait = parse_retry_after(retry_after)
            time.sleep(backoff(attempt, self.base_delay) if wait is None else wait)
        if not result.ok and self.throw_on_error:
            raise ApiError(result)
        return result
`
