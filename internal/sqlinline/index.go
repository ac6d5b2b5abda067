package sqlinline

const QPutIndexEntry = `--sql 386a03a6-63be-4a02-b99b-2fa4113e0a19
insert into index_entries (key, value, expires_at)
values ($1, $2, $3)
on conflict (key) do update
set value = excluded.value,
    expires_at = excluded.expires_at,
    updated_at = now()
`

const QGetIndexEntry = `--sql fddc2a09-e7e2-4238-98d0-be1ad3878e88
select value
from index_entries
where key = $1
  and (expires_at is null or expires_at > now())
`

const QListIndexKeys = `--sql 6b8873da-f3b2-4e4e-ade8-a530b2939f1b
select key
from index_entries
where key like $1 escape '\'
  and (expires_at is null or expires_at > now())
`

const QPurgeExpiredIndexEntries = `--sql ac791ffc-ac41-459d-9eb2-186eacf1b45f
delete from index_entries
where expires_at is not null
  and expires_at <= now()
`
