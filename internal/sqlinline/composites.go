package sqlinline

const QCreateCompositeRuns = `--sql 9d2b7c40-1e3a-4f6b-8a95-4c7e2d0b6a58
create table if not exists composite_runs (
    id uuid primary key,
    model text not null,
    style_hint text not null default '',
    subject_source text not null default '',
    object_source text not null default '',
    status text not null,
    error_kind text not null default '',
    error_detail text not null default '',
    result_name text not null default '',
    result_url text not null default '',
    duration_ms bigint not null default 0,
    created_at timestamptz not null default now()
);
`

const QInsertCompositeRun = `--sql 5b8e1a73-2c4d-4a9f-b610-7e3f9d2c4a85
insert into composite_runs (
    id, model, style_hint, subject_source, object_source, status,
    error_kind, error_detail, result_name, result_url, duration_ms, created_at
)
values ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`

const QSelectCompositeRun = `--sql c47a0e19-8f2b-4d36-a5e1-2b9c6f8d0e74
select id::text, model, style_hint, subject_source, object_source, status,
       error_kind, error_detail, result_name, result_url, duration_ms, created_at
from composite_runs
where id = $1::uuid;
`
